// Package action implements the bot's download and how-to-download commands.
//
// A Downloader takes a chat message through the whole pipeline:
//
//	parse -> resolve run -> resolve artifact -> fetch -> upload
//
// Each step replies into the chat thread and updates the download ledger.
// Outcomes the user can act on (an unknown command, a missing run, a bad
// artifact) are replied to and recorded but are not returned as errors.
package action
