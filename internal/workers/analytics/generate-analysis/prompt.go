// internal/workers/analytics/generate-analysis/prompt.go
package generateanalysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"sales-insight-workers/internal/analysis"
	"sales-insight-workers/internal/models"
)

var (
	rule60 = strings.Repeat("=", 60)
	rule70 = strings.Repeat("=", 70)
)

const generationPrompt = `You are an expert analysis code generator for a pandas-style DataFrame.

USER QUERY: %q

QUERY ANALYSIS:
%s

%s
%s
Generate code to retrieve the data needed to answer this query.

CRITICAL REQUIREMENTS:
1. Use the DataFrame variable 'df' (already loaded)
2. Store the final result in a variable called 'result'
3. Result can be: a number, a dict, a DataFrame, or a list
4. NO print statements, NO imports, NO loops, NO lambdas, NO function definitions
5. ONLY executable assignment statements
6. Use ONLY basic operations: filter, groupby, sum, mean, count, sort_values, head, tail, agg, nunique, pct_change
7. For trends, use groupby with time columns (Year, Quarter, Month)
8. Code must be complete - no truncated lines

COUNT vs SUM:
- "How many transactions/rows?" -> len(df) or df.shape[0]
- "What is total sales/revenue?" -> df['Net_Amount_BDT'].sum()
- "How many products?" -> df['Product_Name'].nunique()

BASIC EXAMPLES:

Example 1 - Count rows:
` + "```python" + `
result = len(df[df['Year'] == 2024])
` + "```" + `

Example 2 - Total sales:
` + "```python" + `
result = df[df['Year'] == 2024]['Net_Amount_BDT'].sum()
` + "```" + `

Example 3 - Count with two filters (Q3 = Quarter 3):
` + "```python" + `
result = len(df[(df['Year'] == 2024) & (df['Quarter'] == 3)])
` + "```" + `

Example 4 - Comparison:
` + "```python" + `
data_2024 = df[df['Year'] == 2024]['Net_Amount_BDT'].sum()
data_2023 = df[df['Year'] == 2023]['Net_Amount_BDT'].sum()
result = {'year_2024': data_2024, 'year_2023': data_2023, 'change_%%': (data_2024 / data_2023 - 1) * 100}
` + "```" + `

Example 5 - Top items:
` + "```python" + `
result = df.groupby('Product_Name')['Net_Amount_BDT'].sum().sort_values(ascending=False).head(10).to_dict()
` + "```" + `

Example 6 - Quarterly breakdown:
` + "```python" + `
cement = df[df['Division_Name'] == 'Cement']
quarterly = cement.groupby(['Year', 'Quarter'])['Net_Amount_BDT'].sum().reset_index()
result = quarterly.to_dict('records')
` + "```" + `

Now generate code for the user query. Return ONLY the code in a python code block.
Make sure ALL lines are complete with closing parentheses and brackets.
`

const predictiveExamples = `%[1]s
PREDICTIVE/TREND ANALYSIS REQUIREMENTS:
%[1]s
This is a PREDICTIVE query about trends, forecasts, or patterns.
Calculate growth rates or time-series comparisons; a single total is not enough.

Example - "Which products are trending upward?":
` + "```python" + `
latest_year = df['Year'].max()
latest = df[df['Year'] == latest_year].groupby('Product_Name')['Net_Amount_BDT'].sum()
previous = df[df['Year'] == latest_year - 1].groupby('Product_Name')['Net_Amount_BDT'].sum()
growth = ((latest / previous - 1) * 100).round(2)
result = growth[growth > 0].sort_values(ascending=False).head(10).to_dict()
` + "```" + `

Example - "What is the trend of a specific product?":
` + "```python" + `
product_data = df[df['Product_Name'] == 'Chanachur Mix']
monthly_trend = product_data.groupby(['Year', 'Month'])['Net_Amount_BDT'].sum().reset_index()
result = monthly_trend.sort_values(['Year', 'Month']).to_dict('records')
` + "```" + `

Example - Seasonal pattern:
` + "```python" + `
seasonal = df.groupby('Quarter')['Net_Amount_BDT'].mean().reset_index()
result = seasonal.to_dict('records')
` + "```" + `

Example - Forecast next year with a simple growth projection:
` + "```python" + `
yearly = df.groupby('Year')['Net_Amount_BDT'].sum().sort_index()
growth = yearly.pct_change() * 100
avg_growth = growth.mean()
latest_sales = yearly.iloc[-1]
result = {'yearly_sales': yearly.to_dict(), 'avg_growth_rate_%%': round(avg_growth, 2), 'projected_year': int(yearly.index[-1]) + 1, 'projected_sales': latest_sales * (1 + avg_growth / 100)}
` + "```" + `
%[1]s
`

const prescriptiveExamples = `%[1]s
STRATEGIC ANALYSIS REQUIREMENTS (for recommendations/decisions):
%[1]s
This is a STRATEGIC/PRESCRIPTIVE query. Generate code that provides COMPARATIVE data.

1. Check whether the entity exists in the data first.
2. If it does not exist, find comparable entities and measure their revenue, profit and margin.
3. Include division profitability, market saturation (branch counts) and growth of comparable entities.

Example - "Should we open a branch in Khulna?":
` + "```python" + `
khulna_exists = df[df['Branch_Name'].str.contains('Khulna', case=False)].shape[0] > 0
sylhet = df[df['Branch_Name'] == 'FMCG Sylhet']
sylhet_metrics = sylhet.groupby('Year').agg({'Net_Amount_BDT': 'sum', 'Profit_BDT': 'sum', 'Margin_Percent': 'mean'}).to_dict('index')
division_performance = df.groupby('Division_Name').agg({'Net_Amount_BDT': 'sum', 'Profit_BDT': 'sum', 'Margin_Percent': 'mean', 'Branch_ID': 'nunique'}).sort_values('Margin_Percent', ascending=False).to_dict('index')
branches_per_division = df.groupby('Division_Name')['Branch_Name'].nunique().to_dict()
ramp_up = sylhet.groupby(['Year', 'Month']).agg({'Net_Amount_BDT': 'sum', 'Profit_BDT': 'sum'}).reset_index().to_dict('records')
result = {'khulna_exists': khulna_exists, 'comparable_sylhet': sylhet_metrics, 'division_profitability': division_performance, 'market_saturation': branches_per_division, 'ramp_up_pattern': ramp_up}
` + "```" + `

For "Which division/product should we focus on?" compare ALL options on profitability, growth and share.
%[1]s
`

const retryPrompt = `Generate SIMPLE pandas-style code for this query.

USER QUERY: %q

%s
Generate the SIMPLEST possible code. Use basic operations only.

Rules:
- Use the df variable
- Store the result in 'result'
- Use only: filter, groupby, sum, mean, count, sort_values
- Any function or method you call must be one of: %s
- NO loops, NO imports, NO lambdas
- Keep it under 5 lines
- Make sure ALL parentheses are closed

Example for a product trend:
` + "```python" + `
product_df = df[df['Product_Name'] == 'Product Name']
trend = product_df.groupby(['Year', 'Quarter'])['Net_Amount_BDT'].sum().reset_index()
result = trend.to_dict('records')
` + "```" + `

Generate code now. Return ONLY complete, executable code:
`

func buildPrompt(question string, c *models.Classification, schema, context string) string {
	analysis, _ := json.MarshalIndent(c, "", "  ")

	section := schema
	if context != "" {
		section += fmt.Sprintf("\n\n%s\nKNOWLEDGE BASE CONTEXT (Schema, Products, Business Info):\n%s\n%s\n%s\n", rule60, rule60, context, rule60)
	}

	var guidance string
	switch c.Type() {
	case models.QuestionTypePredictive:
		guidance = fmt.Sprintf(predictiveExamples, rule70)
	case models.QuestionTypePrescriptive:
		guidance = fmt.Sprintf(prescriptiveExamples, rule70)
	}

	return fmt.Sprintf(generationPrompt, question, analysis, section, guidance)
}

func buildRetryPrompt(question, schema, context string, contextChars int) string {
	section := schema
	if context != "" {
		if contextChars > 0 {
			context = truncate(context, contextChars)
		}
		section += fmt.Sprintf("\n\nKNOWLEDGE BASE INFO:\n%s...\n", context)
	}
	return fmt.Sprintf(retryPrompt, question, section, strings.Join(analysis.AllowedCalls(), ", "))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
