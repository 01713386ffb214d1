// Package protocol defines the text frames exchanged on the realtime channel.
package protocol

import "strconv"

const echoPrefix = "Message text was: "

// Echo is the reply to an inbound client frame.
func Echo(payload string) string { return echoPrefix + payload }

// Change notifications broadcast after a successful mutation.

func AuthorCreated(name string) string { return "Author created: " + name }
func AuthorPut(name string) string     { return "Author putted: " + name }
func AuthorDeleted(id int64) string    { return "Author deleted by id: " + strconv.FormatInt(id, 10) }

func BookCreated(title string) string { return "Books created: " + title }
func BookPatched(id int64) string     { return "Book patched: " + strconv.FormatInt(id, 10) }
func BookPut(id int64) string         { return "Book putted: " + strconv.FormatInt(id, 10) }
func BookDeleted(id int64) string     { return "Book deleted by id: " + strconv.FormatInt(id, 10) }
