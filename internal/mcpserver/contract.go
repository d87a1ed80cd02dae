package mcpserver

// NoteFormat describes the note document layout that the scanner accepts.
const NoteFormat = `# Note Format

A note is one UTF-8 file directly inside the note directory whose name ends
with the configured extension (` + "`" + `.markdown` + "`" + ` by default). Files in
sub-directories and files with other extensions are ignored.

## Structure

` + "```" + `
name: Human-readable title
date: 2024-03-05 14:30

Body in Markdown (GitHub flavoured: tables, strikethrough, task lists).
` + "```" + `

## Rules

1. **Header first.** One ` + "`" + `key: value` + "`" + ` pair per line, then one empty line,
   then the body. A file without the empty line is rejected.
2. **Keys** are ` + "`" + `name` + "`" + ` and ` + "`" + `date` + "`" + `. Any other key is rejected.
   Keys are matched exactly; values are trimmed and may contain colons.
3. ` + "`" + `name` + "`" + ` is required and must not be empty.
4. ` + "`" + `date` + "`" + ` uses the layout ` + "`" + `YYYY-MM-DD HH:MM` + "`" + `. When omitted the note sorts
   last, unless the server requires dates.
5. **Raw HTML** in the body is dropped when rendering; use Markdown.
6. **One bad file blocks the update.** A rejected document keeps the previously
   published snapshot live until the file is fixed.
7. The file name without extension is the note's slug.

## Example

` + "```" + `
name: Weekly standup
date: 2025-01-20 09:00

# Weekly standup

| Who   | Status |
|-------|--------|
| Alice | done   |
` + "```" + `
`
