// Package language normalizes the language codes that flow between config,
// audio stream tags, the transcriber and description prompts.
//
// Codes are resolved with golang.org/x/text/language so ISO 639-1, ISO 639-2
// (including bibliographic forms such as "fre") and BCP 47 tags all collapse
// to one base language. Display names come from x/text/language/display.
package language
