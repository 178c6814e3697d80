// Package cleanse prepares raw comment tables for analysis.
//
// Cleaning a table drops rows without contents, then for each remaining
// row removes the "回复@nickname:" quote the site prepends to replies and
// strips pictographic emoji. Ids and parent ids are kept unchanged so that
// the reply structure survives cleaning.
package cleanse
