// Package coverage reduces browser CSS coverage to per-stylesheet line and
// byte statistics.
//
// The pipeline runs in four stages, each a pure function:
//
//	Filter       keep CSS, pull <style> blocks out of HTML documents
//	Prettify     pretty-print each stylesheet and move ranges along
//	Deduplicate  merge identical stylesheets seen under several URLs
//	Calculate    derive used bytes and a covered/uncovered bit per line
//
// Ranges carry the text they index in their type parameter, so a range over
// an HTML document cannot be handed to a stage that expects formatted CSS.
package coverage
