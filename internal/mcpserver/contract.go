package mcpserver

// MarkdownRules describes how nbmark lays out a notebook when rendering it
// to Markdown, so LLM consumers can navigate the output.
const MarkdownRules = `# nbmark Markdown Rendering Rules

Every notebook is rendered cell by cell, in document order. Nothing else is
emitted: no front matter, no notebook metadata, no cell ids.

## Cells

- **Markdown cells** are copied verbatim, followed by a newline.
- **Code cells** are wrapped in a plain ` + "```" + ` fence (no language tag),
  followed by the cell's outputs block.
- Every cell's rendering is followed by one more newline, so cells are
  separated by a blank line.

## Outputs block

- A code cell with no outputs renders **nothing** after its source fence:
  no heading, no empty fence.
- Otherwise the literal line ` + "`Output`" + ` is followed by a single fence
  holding the text of every output, joined with newlines and trimmed of
  leading and trailing whitespace.

## Output text

| output_type | text |
|---|---|
| stream | the stream text (stdout or stderr) |
| execute_result | the ` + "`text/plain`" + ` representation |
| error | the error value on its own line, then the traceback |

Tracebacks may contain terminal colour codes unless the server strips them.

## Example

` + "````" + `markdown
# Sales analysis

` + "```" + `
print(sum(data))
` + "```" + `
Output
` + "```" + `
42
` + "```" + `

` + "````" + `
`
