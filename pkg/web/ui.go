package web

// indexHTML is the embedded single-file web UI served at "/".
// It uses vanilla JS + WebSocket to display intercepted LLM calls live.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>llmtap</title>
<style>
  :root {
    --bg: #1a1a2e;
    --bg2: #16213e;
    --bg3: #0f3460;
    --fg: #e0e0e0;
    --fg2: #a0a0b0;
    --green: #4caf50;
    --yellow: #ffc107;
    --red: #f44336;
    --cyan: #00bcd4;
    --border: #2a2a4a;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: 'Menlo','Monaco','Courier New',monospace; background: var(--bg); color: var(--fg); height: 100vh; display: flex; flex-direction: column; font-size: 13px; }
  #header { background: var(--bg3); padding: 8px 16px; display: flex; align-items: center; gap: 16px; border-bottom: 1px solid var(--border); }
  #header h1 { font-size: 15px; color: var(--cyan); }
  #header .stats { color: var(--fg2); font-size: 12px; }
  #header .dot { width: 8px; height: 8px; border-radius: 50%; background: var(--red); }
  #header .dot.live { background: var(--green); animation: pulse 2s infinite; }
  @keyframes pulse { 0%,100%{opacity:1} 50%{opacity:.4} }
  #main { flex: 1; overflow-y: auto; }
  table { width: 100%; border-collapse: collapse; }
  thead { position: sticky; top: 0; background: var(--bg2); z-index: 1; }
  th { padding: 6px 8px; text-align: left; color: var(--cyan); font-weight: bold; border-bottom: 1px solid var(--border); font-size: 11px; white-space: nowrap; }
  td { padding: 5px 8px; border-bottom: 1px solid var(--border); white-space: nowrap; overflow: hidden; text-overflow: ellipsis; max-width: 300px; }
  tr:hover { background: var(--bg2); }
  .status-2xx { color: var(--green); font-weight: bold; }
  .status-3xx { color: var(--cyan); }
  .status-4xx { color: var(--yellow); font-weight: bold; }
  .status-5xx { color: var(--red); font-weight: bold; }
  .status-err { color: var(--red); font-style: italic; }
  .tag { background: var(--bg3); color: var(--cyan); padding: 1px 5px; border-radius: 2px; font-size: 10px; }
  .muted { color: var(--fg2); }
</style>
</head>
<body>
<div id="header">
  <h1>llmtap</h1>
  <div class="dot" id="dot"></div>
  <div class="stats"><span id="count">0</span> flows</div>
</div>
<div id="main">
<table>
<thead><tr><th>Method</th><th>Status</th><th>Host</th><th>Path</th><th>Provider</th><th>Format</th><th>Time</th></tr></thead>
<tbody id="rows"></tbody>
</table>
</div>
<script>
const rows = document.getElementById('rows');
const count = document.getElementById('count');
const dot = document.getElementById('dot');
let n = 0;

function statusClass(code) {
  if (!code) return 'status-err';
  return 'status-' + Math.floor(code / 100) + 'xx';
}

function addFlow(v) {
  const r = v.request || {};
  const resp = v.response;
  const tr = document.createElement('tr');
  const provider = v.provider ? '<span class="tag">' + v.provider + '</span>' : '';
  const format = v.apiFormat && v.apiFormat !== 'unknown' ? '<span class="tag">' + v.apiFormat + '</span>' : '';
  const status = resp ? '<span class="' + statusClass(resp.statusCode) + '">' + resp.statusCode + '</span>'
                      : '<span class="status-err">' + (v.error ? 'ERR' : '…') + '</span>';
  const dur = v.timestamps && v.timestamps.responseDone
      ? Math.round((new Date(v.timestamps.responseDone) - new Date(v.timestamps.created))) + 'ms' : '';
  tr.innerHTML = '<td>' + r.method + '</td><td>' + status + '</td><td>' + r.host +
      '</td><td class="muted">' + r.path + '</td><td>' + provider + '</td><td>' + format +
      '</td><td class="muted">' + dur + '</td>';
  rows.prepend(tr);
  count.textContent = ++n;
}

fetch('/api/flows').then(r => r.json()).then(flows => (flows || []).forEach(addFlow));

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onopen = () => dot.classList.add('live');
  ws.onclose = () => { dot.classList.remove('live'); setTimeout(connect, 2000); };
  ws.onmessage = e => {
    const evt = JSON.parse(e.data);
    if (evt.type === 'complete' || evt.type === 'error') addFlow(evt.flow);
  };
}
connect();
</script>
</body>
</html>
`
