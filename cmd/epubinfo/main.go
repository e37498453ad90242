// Epubinfo inspects EPUB publications from the command line.
//
// Usage:
//
//	# Package identity, counts and recorded warnings
//	epubinfo info book.epub
//
//	# Table of contents, landmarks or page list
//	epubinfo toc book.epub --kind landmarks
//
//	# Chapter text, sanitized HTML, or CSS-selected fragments
//	epubinfo read book.epub --chapter 2 --selector "h1, h2"
//
//	# Extract the cover image, optionally resized
//	epubinfo cover book.epub -o cover.jpg --width 600
//
//	# Validate books and list their defects
//	epubinfo check library/*.epub
package main

func main() {
	Execute()
}
