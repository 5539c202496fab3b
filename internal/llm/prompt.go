package llm

import (
	"fmt"
	"strings"
)

// BuildPrompt constructs the generation prompt from the request. Prior turns
// are rendered oldest first, and when feedback from a failed attempt is
// present it is appended after the history so the model sees the error
// immediately before the question.
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert SQL query generator for %s databases.\n\n", req.DatabaseType)
	fmt.Fprintf(&b, "%s\n\n", req.SQLDialect)

	b.WriteString("Rules:\n")
	b.WriteString("1. Generate ONLY the SQL query, no explanations and no markdown fences\n")
	b.WriteString("2. Generate exactly one read-only statement (no INSERT, UPDATE, DELETE, DROP, ALTER, etc.)\n")
	b.WriteString("3. Use only tables and columns from the provided schema\n")
	b.WriteString("4. Always include an appropriate LIMIT clause\n")
	b.WriteString("5. Handle NULL values appropriately\n")
	b.WriteString("6. Use proper date/time functions for the database dialect\n")
	b.WriteString("7. Prefer explicit column names over SELECT *\n")
	b.WriteString("8. Resolve references like \"those\" or \"them\" using the conversation below\n\n")

	fmt.Fprintf(&b, "Database Schema:\n%s\n", req.SchemaDDL)

	if len(req.History) > 0 {
		b.WriteString("\nConversation so far (oldest first):\n")
		for _, turn := range req.History {
			fmt.Fprintf(&b, "Question: %s\n", turn.Question)
			if turn.SQL != "" {
				fmt.Fprintf(&b, "SQL: %s\n", turn.SQL)
			}
			if turn.ResultSummary != "" {
				fmt.Fprintf(&b, "Result: %s\n", turn.ResultSummary)
			}
			b.WriteString("\n")
		}
	}

	if req.Feedback != nil {
		b.WriteString("\nYour previous attempt failed.\n")
		fmt.Fprintf(&b, "Failed SQL: %s\n", req.Feedback.FailedSQL)
		fmt.Fprintf(&b, "Error: %s\n", req.Feedback.ErrorDetail)
		b.WriteString("Correct the statement. Do not repeat it unchanged.\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n\nSQL:", req.Question)

	return b.String()
}

// BuildTitlePrompt asks for a short session title derived from the first
// question.
func BuildTitlePrompt(question string) string {
	var b strings.Builder
	b.WriteString("Generate a short title (at most 6 words) for a data analysis conversation that starts with this question. Respond with the title only, no quotes.\n\n")
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// BuildSummaryPrompt asks for a one or two sentence natural language answer
// grounded in the executed statement's result. Only a sample of rows is
// included; the model is told the full count so it does not invent totals.
func BuildSummaryPrompt(question, sql string, columns []string, rows [][]any, rowCount int) string {
	const sampleLimit = 10

	var b strings.Builder
	b.WriteString("Answer the question in one or two sentences using only the query result below. Do not speculate beyond the data. Respond with the answer only.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "SQL: %s\n", sql)
	fmt.Fprintf(&b, "Total rows: %d\n\n", rowCount)

	b.WriteString("Result")
	if len(rows) > sampleLimit {
		fmt.Fprintf(&b, " (first %d rows)", sampleLimit)
	}
	b.WriteString(":\n")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")
	for i, row := range rows {
		if i >= sampleLimit {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%v", v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}

	return b.String()
}

// ExtractSQL extracts a statement from an LLM response, stripping markdown
// fences and trailing semicolons. Models occasionally ignore rule 1 and wrap
// the statement anyway.
func ExtractSQL(response string) string {
	if sql := extractFenced(response, "```sql"); sql != "" {
		return sql
	}
	if sql := extractFenced(response, "```"); sql != "" {
		return sql
	}
	return cleanSQL(response)
}

func extractFenced(content, marker string) string {
	start := strings.Index(content, marker)
	if start == -1 {
		return ""
	}
	rest := content[start+len(marker):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return ""
	}
	return cleanSQL(rest[:end])
}

func cleanSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}
