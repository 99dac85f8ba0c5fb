package mcpserver

// PostFormatContract describes the post format that LLM consumers should
// follow when publishing to the feed.
const PostFormatContract = `# Perch Post Format Contract

Every post published to the Perch feed follows these rules.

## Structure

A post is a short free-form **Markdown** body plus an optional tag list.

- **content**: standard Markdown. Keep it short; this is a social feed, not a
  blog. Headings are allowed but rarely appropriate.
- **tags**: a comma-separated string, e.g. ` + "`" + `"go, release, notes"` + "`" + `.
  Tags are trimmed and empty entries are dropped; insertion order is kept for
  display.

## Images

- Posts may embed images already stored on the server using the image proxy
  path: ` + "`" + `![description](/images/{key})` + "`" + `.
- New image uploads are only possible through the admin web form, not through
  MCP tools; do not invent image keys.

## Rules

1. **Content is required** and must be non-empty.
2. **Do not set ids or dates.** The server assigns both; the creation date is
   rendered as ` + "`" + `YYYY-MM-DD HH:MM:SS` + "`" + ` in UTC.
3. **No HTML** unless absolutely necessary; prefer Markdown equivalents.
4. Posts render client-side with marked.js; stick to common Markdown.

## Example

` + "```" + `
content: Shipped the new sweep loop today. Orphaned uploads are now cleaned
up automatically once a day.
tags: release, housekeeping
` + "```" + `
`
