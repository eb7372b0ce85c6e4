package server

import (
	"net/http"
)

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(uiHTML))
}

const uiHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>copytrade controlplane</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Arial; margin: 0; }
    .wrap { display: grid; grid-template-columns: 360px 1fr; height: 100vh; }
    .left { border-right: 1px solid #eee; padding: 12px; overflow:auto; }
    .right { padding: 12px; overflow:auto; }
    pre { background:#0b1020; color:#d6e2ff; padding:12px; border-radius:8px; overflow:auto; min-height: 160px; }
    button { margin-right: 8px; }
    .row { display:flex; gap: 8px; align-items:center; flex-wrap: wrap; }
    .muted { color:#666; font-size: 12px; }
    table { border-collapse: collapse; width: 100%; font-size: 13px; }
    td, th { border-bottom: 1px solid #eee; padding: 4px 6px; text-align: left; }
    .ok { color: #1a7f37; } .bad { color: #cf222e; }
  </style>
</head>
<body>
<div class="wrap">
  <div class="left">
    <h3 style="margin-top:0">跟单状态</h3>
    <div class="row">
      <input id="token" placeholder="token（可选）" style="width:200px"/>
      <button onclick="reload()">刷新</button>
    </div>
    <div class="row" style="margin-top:8px">
      <button onclick="post('/api/start')">启动</button>
      <button onclick="post('/api/stop')">停止</button>
      <button onclick="copying(true)">开启复制</button>
      <button onclick="copying(false)">暂停复制</button>
    </div>
    <pre id="status"></pre>
  </div>
  <div class="right">
    <h3 style="margin-top:0">最近复制</h3>
    <table><thead><tr><th>时间</th><th>动作</th><th>主订单</th><th>合约</th><th>方向</th><th>数量</th><th>结果</th></tr></thead>
    <tbody id="recent"></tbody></table>
    <h3>实时事件</h3>
    <pre id="events"></pre>
  </div>
</div>
<script>
function hdrs() {
  const t = document.getElementById('token').value.trim();
  const h = {'Content-Type': 'application/json'};
  if (t) h['Authorization'] = 'Bearer ' + t;
  return h;
}
async function api(method, path, body) {
  const res = await fetch(path, {method, headers: hdrs(), body: body ? JSON.stringify(body) : undefined});
  return res.json();
}
async function post(path) { await api('POST', path); reload(); }
async function copying(enabled) { await api('PUT', '/api/copying', {enabled}); reload(); }
async function reload() {
  document.getElementById('status').textContent = JSON.stringify(await api('GET', '/api/status'), null, 2);
  const data = await api('GET', '/api/replications?limit=50');
  const rows = (data.items || []).map(r => {
    const cls = r.success_count === r.total ? 'ok' : 'bad';
    return '<tr><td>' + new Date(r.created_at).toLocaleString() + '</td><td>' + r.action + '</td><td>' +
      r.primary_order_id + '</td><td>' + r.symbol + '</td><td>' + r.side + '</td><td>' + r.quantity +
      '</td><td class="' + cls + '">' + r.success_count + '/' + r.total + '</td></tr>';
  });
  document.getElementById('recent').innerHTML = rows.join('');
}
function connect() {
  const t = document.getElementById('token').value.trim();
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + '/api/events' + (t ? '?token=' + encodeURIComponent(t) : ''));
  const out = document.getElementById('events');
  ws.onmessage = (m) => { out.textContent = m.data + '\n' + out.textContent; reload(); };
  ws.onclose = () => setTimeout(connect, 3000);
}
reload(); connect(); setInterval(reload, 5000);
</script>
</body>
</html>
`
