// Package extract obtains the raw embedded text of an image file.
//
// Native decodes PNG text chunks directly; Exiftool asks a shared exiftool
// process for the tags that commonly carry generation text (see
// PriorityFields), which covers JPEG, WebP and other containers. Chain tries
// several extractors in order and treats failures as "no metadata". Func
// adapts a plain function, mostly for tests.
//
// ProbeSize reads an image header to recover its dimensions when the embedded
// text does not state them.
package extract
