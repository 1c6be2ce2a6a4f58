package render

const tmplBase = `
{{define "head"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,"Helvetica Neue",Arial,sans-serif;margin:20px;background-color:#f5f5f5}
.container{max-width:1400px;margin:0 auto;background-color:white;padding:20px;border-radius:8px;box-shadow:0 2px 4px rgba(0,0,0,0.1)}
h1{color:#333;border-bottom:2px solid #0078d4;padding-bottom:10px}
h2{color:#555;margin-top:20px}
table{width:100%;border-collapse:collapse;margin-top:20px}
th,td{padding:10px;text-align:left;border-bottom:1px solid #ddd}
th{background-color:#0078d4;color:white;cursor:pointer;user-select:none;position:sticky;top:0;z-index:10}
th:hover{background-color:#005a9e}
th.sortable::after{content:" ⇅";opacity:0.5}
th.sorted-asc::after{content:" ↑";opacity:1}
th.sorted-desc::after{content:" ↓";opacity:1}
tr:hover{background-color:#f0f0f0}
.function-link{color:#0078d4;text-decoration:none;cursor:pointer}
.function-link:hover{text-decoration:underline;color:#005a9e}
.back-link{display:inline-block;margin-bottom:20px;padding:8px 16px;background-color:#0078d4;color:white;text-decoration:none;border-radius:4px}
.back-link:hover{background-color:#005a9e}
.function-details{background-color:#f9f9f9;padding:15px;border-left:4px solid #0078d4;margin:20px 0;border-radius:4px}
.function-signature{font-family:'Courier New',monospace;font-size:14px;word-break:break-all}
.time-cell{text-align:right;font-family:'Courier New',monospace}
.percentage-cell{text-align:right}
.signature-cell{font-family:'Courier New',monospace;font-size:12px;word-break:break-word;overflow-wrap:break-word;max-width:0;white-space:normal}
.sort-controls{margin:20px 0;padding:10px;background-color:#f0f0f0;border-radius:4px}
.sort-button{padding:6px 12px;margin-right:10px;background-color:#0078d4;color:white;text-decoration:none;border-radius:4px;border:none;cursor:pointer}
.sort-button:hover{background-color:#005a9e}
.sort-button.active{background-color:#005a9e;font-weight:bold}
.info{color:#666;font-size:14px;margin:10px 0}
.error{color:#d13438;background-color:#fef0f0;padding:15px;border-left:4px solid #d13438;border-radius:4px;margin:20px 0}
</style>
</head>
<body>
<div class="container">
{{end}}

{{define "foot"}}
</div>
</body>
</html>
{{end}}

{{define "table"}}<table>
<thead>
<tr>
<th>Function</th>
<th class="time-cell">Total Time</th>
<th class="time-cell">Self Time</th>
<th class="percentage-cell">% of Total</th>
<th>Indent Level</th>
<th>Full Signature</th>
</tr>
</thead>
<tbody>
{{range .}}<tr>
<td><a href="{{.URL}}" class="function-link">{{.Name}}</a></td>
<td class="time-cell">{{formatTime .Total}}</td>
<td class="time-cell">{{formatTime .Self}}</td>
<td class="percentage-cell">{{percent .Percentage}}</td>
<td>{{.Indent}}</td>
<td class="signature-cell">{{.Signature}}</td>
</tr>
{{end}}</tbody>
</table>{{end}}
`

const tmplList = `
{{define "list"}}{{template "head" "Profiling Data"}}<h1>Top-Down Profiling Data</h1>
<p class="info">Database: {{.DBName}} | Total functions: {{.Count}} | Sorted by: {{.SortTitle}}</p>
<div class="sort-controls">
<strong>Sort by:</strong>
{{range .SortLinks}}<a href="{{.URL}}" class="sort-button{{if .Active}} active{{end}}">{{.Label}}</a>
{{end}}</div>
{{template "table" .Rows}}
{{template "foot"}}{{end}}
`

const tmplDetail = `
{{define "detail"}}{{template "head" (printf "Function Details: %s" .Function.ShortName)}}<a href="{{.BackURL}}" class="back-link">← Back to Function List</a>
<h1>Function Details</h1>
<div class="function-details">
<h2>{{.Function.ShortName}}</h2>
<p><strong>Total Time:</strong> {{formatTime .Function.TotalTime}} ({{percent .Function.Percentage}} of total)</p>
<p><strong>Self Time:</strong> {{formatTime .Function.SelfTime}}</p>
<p><strong>Indent Level:</strong> {{.Function.IndentLevel}}</p>
<p class="function-signature"><strong>Signature:</strong> {{.Function.FullSignature}}</p>
</div>
{{if .Rows}}<h2>Immediate Children ({{len .Rows}})</h2>
{{template "table" .Rows}}
{{else}}<p class="info">This function has no children (leaf function).</p>
{{end}}{{template "foot"}}{{end}}
`

const tmplNotFound = `
{{define "notfound"}}{{template "head" .Title}}<h1>{{.Title}}</h1>
<div class="error">{{.Message}}</div>
<a href="{{.BackURL}}" class="back-link">← Back to Function List</a>
{{template "foot"}}{{end}}
`

const tmplError = `
{{define "error"}}{{template "head" "Error"}}<h1>Error</h1>
<div class="error"><pre>{{.Detail}}</pre></div>
{{template "foot"}}{{end}}
`
