package mcpserver

// StoreFormatContract describes the persisted annotation document so LLM
// consumers can reason about paths, categories and ids.
const StoreFormatContract = `# ProTasker Store Format

The store is a single JSON document with three top-level collections.

` + "```" + `json
{
  "files": {
    "/src/main.go": {
      "notes": [
        {"id": 1740000000000, "type": "note", "content": "Refactor", "createdAt": "2025-02-19T21:20:00.000Z", "deadline": null}
      ],
      "checklists": [
        {"id": 1740000000001, "type": "checklist", "createdAt": "2025-02-19T21:20:00.000Z",
         "deadline": "2025-03-01T12:00:00.000Z",
         "content": {"id": 1740000000001, "name": "Release", "createdAt": "2025-02-19T21:20:00.000Z",
                     "deadline": "2025-03-01T12:00:00.000Z",
                     "items": [{"uid": "3f1c...", "text": "tag", "done": true}]}}
      ]
    }
  },
  "directories": { "/src": { "events": [] } },
  "lines": {
    "/src/main.go": [
      {"id": 1740000000002, "type": "line", "line": 42, "content": "Off by one?", "createdAt": "...", "deadline": null}
    ]
  }
}
` + "```" + `

## Rules

1. **Paths** are anchor keys: forward slashes, no trailing slash, lower-cased on
   case-insensitive platforms. Use the same path for files and their lines.
2. **Categories** are the plural of the type: ` + "`" + `note` + "`" + ` lives under ` + "`" + `notes` + "`" + `,
   ` + "`" + `checklist` + "`" + ` under ` + "`" + `checklists` + "`" + `. Custom types configured under
   ` + "`" + `annotations.custom_types` + "`" + ` follow the same rule.
3. **Ids** are unique across the whole store. Checklists may also be addressed by
   the id inside their content.
4. **Line annotations** are 1-based and never hold checklists.
5. **Deadlines** are ISO-8601 strings or null. Approaching (within one hour) and
   overdue deadlines raise one notification each.
6. **Checklist items** are addressed by ` + "`" + `uid` + "`" + ` when present, otherwise by their
   0-based index.
`
