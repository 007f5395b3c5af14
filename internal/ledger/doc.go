// Package ledger persists the contacts that have written to the bot.
//
// The ledger is a UTF-8 CSV file with the fixed header
// "contact_id,nom,date_ajout". Rows are only ever appended: the file is opened
// with O_APPEND and prior content is never rewritten, so a crash can at worst
// lose the row being written. Deduplication is a linear scan of the file,
// which is adequate for a personal contact list.
//
// RecordIfNew is the entry point for inbound messages. It serializes the
// existence check and the append behind a process mutex and an advisory file
// lock so concurrent messages from the same new contact, in this process or
// another, produce exactly one row.
package ledger
