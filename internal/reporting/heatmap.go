package reporting

// heatmapTemplate renders the full status page: one row per issuer in ranked
// order, one column per slot, plus the CT log lag table. Every cell carries
// its classification inputs in a data-cell attribute so the page doubles as
// the audit trail for the run.
const heatmapTemplate = `<!DOCTYPE html>
<html>
<head>
<title>{{.Title}}</title>
<style>
body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
    margin: 20px;
}
.heatmap-container {
    display: flex;
    flex-direction: column;
    gap: 0;
    background-color: #ddd;
    padding: 1px;
    border-radius: 4px;
    overflow: auto;
    max-width: fit-content;
}
.info-panel {
    background-color: white;
    border: 1px solid #ddd;
    border-radius: 4px;
    padding: 12px;
    box-shadow: 0 1px 3px rgba(0,0,0,0.1);
    position: fixed;
    pointer-events: none;
    max-width: 500px;
    z-index: 1000;
    display: none;
}
.info-title { font-weight: bold; margin-bottom: 8px; color: #333; }
.info-details { font-size: 14px; }
.info-row { margin-bottom: 4px; }
.info-row:last-child { margin-bottom: 0; }
.info-row strong { color: #666; margin-right: 4px; }
.heatmap-header, .heatmap-grid {
    display: grid;
    grid-template-columns: minmax(200px, auto) repeat({{.Columns}}, 20px);
}
.heatmap-header { background: #fafafa; }
.heatmap-grid { background: #fff; }
.url-column {
    padding: 2px 6px;
    border: 1px solid #eee;
    background: #fff;
    font-size: 13px;
    word-break: break-all;
}
.status-cell {
    width: 20px;
    height: 20px;
    border: 1px solid #eee;
    text-align: center;
    font-size: 13px;
    padding: 0;
    margin: 0;
}
.date-header {
    font-size: 12px;
    text-align: center;
    padding: 2px 0;
    border: 1px solid #eee;
    background: #fafafa;
    writing-mode: vertical-rl;
    transform: rotate(180deg);
    height: 100px;
    white-space: nowrap;
    display: flex;
    align-items: center;
    justify-content: center;
}
.lag-table { border-collapse: collapse; margin-top: 30px; }
.lag-table th, .lag-table td {
    border: 1px solid #eee;
    padding: 4px 10px;
    font-size: 13px;
    text-align: left;
}
.lag-table th { background: #fafafa; }
.lag-error { background: #FFB6C1; }
h1, h2 { color: #333; }
a { color: #0066cc; text-decoration: none; }
a:hover { text-decoration: underline; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="heatmap-container">
<div class="info-panel">
    <div class="info-content">
        <div class="info-title">Hover over a cell to see details</div>
        <div class="info-details"></div>
    </div>
</div>
<div class="heatmap-header">
<div class="date-header"></div>
{{range .Slots}}<div class="date-header">{{.}}</div>
{{end}}</div>
<div class="heatmap-grid">
{{range .Issuers}}<div class="url-column" data-severity="{{.Severity}}"><a href="{{.URL}}" target="_blank" title="{{.Subject}}">{{.DisplayURL}}</a></div>
{{range .Cells}}<div class="status-cell" style="background-color: {{.Color}};" data-cell="{{.Data}}">{{.Marker}}</div>
{{end}}
{{end}}</div>
</div>
{{if .Logs}}
<h2>CT Log Ingestion Lag</h2>
<table class="lag-table">
<tr><th>Log</th><th>Entry Lag</th><th>Time Diff</th><th>Tree Size</th><th>Ingested</th><th>Error</th></tr>
{{range .Logs}}<tr{{if .Failed}} class="lag-error"{{end}}><td>{{.ShortURL}}</td><td>{{.EntryLag}}</td><td>{{.TimeDiff}}</td><td>{{.TreeSize}}</td><td>{{.Ratio}}</td><td>{{.Error}}</td></tr>
{{end}}</table>
{{end}}
<script>
document.addEventListener('DOMContentLoaded', function() {
    const infoPanel = document.querySelector('.info-panel');
    const infoDetails = document.querySelector('.info-details');
    const infoTitle = document.querySelector('.info-title');
    const cells = document.querySelectorAll('.status-cell');

    document.addEventListener('mousemove', function(e) {
        const x = e.clientX + 15;
        const y = e.clientY + 15;
        const panelRect = infoPanel.getBoundingClientRect();
        infoPanel.style.left = Math.min(x, window.innerWidth - panelRect.width) + 'px';
        infoPanel.style.top = Math.min(y, window.innerHeight - panelRect.height) + 'px';
    });

    cells.forEach(cell => {
        cell.addEventListener('mouseenter', function() {
            const data = JSON.parse(this.dataset.cell);
            if (data.kind) {
                let html = '<div class="info-row"><strong>Date:</strong> ' + data.date + '</div>';
                html += '<div class="info-row"><strong>Sha256:</strong> ' + data.sha256sum + '</div>';
                html += '<div class="info-row"><strong>Age:</strong> ' + data.age + '</div>';
                html += '<div class="info-row"><strong>Kind:</strong> ' + data.kind + '</div>';
                if (data.revocations !== undefined) {
                    let revText = '<strong>Revocations:</strong> ' + data.revocations;
                    if (data.rev_change !== undefined) {
                        revText += data.rev_change > 0 ? ' (+' + data.rev_change + ')' : ' (' + data.rev_change + ')';
                    }
                    html += '<div class="info-row">' + revText + '</div>';
                }
                if (data.errors) {
                    html += '<div class="info-row"><strong>Errors:</strong> ' + data.errors + '</div>';
                }
                infoDetails.innerHTML = html;
                infoTitle.textContent = data.issuer || data.url;
                infoPanel.style.display = 'block';
            } else {
                infoDetails.innerHTML = '<div class="info-row">No data available for ' + data.url + ' on ' + data.date + '</div>';
                infoTitle.textContent = 'No Data';
                infoPanel.style.display = 'block';
            }
        });

        cell.addEventListener('mouseleave', function() {
            infoPanel.style.display = 'none';
            infoDetails.innerHTML = '';
            infoTitle.textContent = 'Hover over a cell to see details';
        });
    });
});
</script>
</body>
</html>
`
