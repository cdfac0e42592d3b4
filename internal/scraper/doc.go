// Package scraper holds the shared vocabulary of the extraction pipeline: queue
// entries, fetched pages, extracted mentions and the identity records they
// resolve into, plus the error taxonomy every stage reports failures with.
package scraper
