package server

import "html/template"

// indexHTML is the static UI shell served at "/". The browser UI's own
// behavior is out of scope for this engine (spec.md §1: "its contract is
// defined only by the message types the core emits") — this is a minimal,
// build-step-free shell in the teacher's dashboardHTML style
// (internal/dashboard/dashboard.go) that opens the WebSocket, renders the
// document in an iframe pointed at "/doc", and leaves richer rendering to
// whatever consumes the event stream.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>explorerd</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
         background: #0f1117; color: #e1e4e8; height: 100vh; display: flex; flex-direction: column; }
  header { padding: 8px 16px; border-bottom: 1px solid #30363d; font-size: 13px; color: #8b949e; }
  #doc { flex: 1; border: 0; background: #fff; }
  #status { color: #58a6ff; }
</style>
</head>
<body>
<header>explorerd — <span id="status">connecting...</span></header>
<iframe id="doc"></iframe>
<script>
function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const token = new URLSearchParams(location.search).get('token') || '';
  document.getElementById('doc').src = '/doc?token=' + encodeURIComponent(token);
  const ws = new WebSocket(proto + '//' + location.host + '/ws?token=' + encodeURIComponent(token));
  ws.onopen = function() { document.getElementById('status').textContent = 'connected'; };
  ws.onclose = function() {
    document.getElementById('status').textContent = 'disconnected';
    setTimeout(connect, 3000);
  };
  ws.onmessage = function(e) {
    try {
      const msg = JSON.parse(e.data);
      if (msg.type === 'doc_ready' || msg.type === 'doc_validated') {
        document.getElementById('doc').contentWindow.location.reload();
      }
    } catch (err) { console.error('ws parse error:', err); }
  };
}
connect();
</script>
</body>
</html>`

// loadingHTML is returned by "/doc" before the agent has produced a
// document yet (spec.md §4.6).
const loadingHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>explorerd</title></head>
<body style="font-family:sans-serif;color:#8b949e;padding:24px;">Waiting for the agent to write a document...</body>
</html>`

// docTemplateData carries the interpolated fields into docTemplate.
type docTemplateData struct {
	Title string
	Body  template.HTML
}

// docTemplate wraps the renderer's body fragment with a title and the
// selection-bridge script (spec.md §4.6): selecting text in the document
// posts it to the parent window so an embedding UI can react to it.
var docTemplate = template.Must(template.New("doc").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; padding: 24px; max-width: 900px; margin: 0 auto; }</style>
</head>
<body>
{{.Body}}
<script>
document.addEventListener('mouseup', function() {
  const text = window.getSelection().toString();
  if (text && window.parent !== window) {
    window.parent.postMessage({type: 'selection', text: text}, '*');
  }
});
</script>
</body>
</html>`))
