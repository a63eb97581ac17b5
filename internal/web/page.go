package web

import (
	"html/template"
	"net/http"
)

var chatPage = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>finrag</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; color: #1a1a2e; }
  h1 { font-size: 1.3rem; }
  #log { border: 1px solid #ddd; border-radius: 8px; padding: 1rem; min-height: 320px; }
  .q { font-weight: 600; margin-top: 1rem; }
  .a { margin: .5rem 0 0 1rem; }
  .a img { max-width: 100%; border: 1px solid #ccc; border-radius: 4px; margin-top: .5rem; display: block; }
  .sources { font-size: .8rem; color: #666; margin-left: 1rem; }
  form { display: flex; gap: .5rem; margin-top: 1rem; }
  input[type=text] { flex: 1; padding: .6rem; border: 1px solid #ccc; border-radius: 6px; }
  button { padding: .6rem 1.2rem; border: 0; border-radius: 6px; background: #16213e; color: #fff; cursor: pointer; }
  .err { color: #b00020; margin-left: 1rem; }
</style>
</head>
<body>
<h1>Financial report chat ({{.Model}})</h1>
<div id="log"></div>
<form id="f">
  <input type="text" id="q" placeholder="Ask about the ingested filings…" autofocus>
  <button type="submit">Ask</button>
</form>
<script>
const log = document.getElementById('log');
document.getElementById('f').addEventListener('submit', async (e) => {
  e.preventDefault();
  const box = document.getElementById('q');
  const question = box.value.trim();
  if (!question) return;
  box.value = '';

  const qEl = document.createElement('div');
  qEl.className = 'q';
  qEl.textContent = question;
  log.appendChild(qEl);

  const aEl = document.createElement('div');
  aEl.className = 'a';
  aEl.textContent = 'Thinking…';
  log.appendChild(aEl);

  try {
    const resp = await fetch('/api/query', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({question}),
    });
    const data = await resp.json();
    if (!resp.ok) {
      aEl.className = 'err';
      aEl.textContent = data.error || ('request failed: ' + resp.status);
      return;
    }
    aEl.innerHTML = data.answer_html;
    for (const src of data.images || []) {
      const img = document.createElement('img');
      img.src = src;
      aEl.appendChild(img);
    }
    if (data.sources && data.sources.length) {
      const s = document.createElement('div');
      s.className = 'sources';
      s.textContent = data.sources.length + ' sources retrieved';
      log.appendChild(s);
    }
  } catch (err) {
    aEl.className = 'err';
    aEl.textContent = String(err);
  }
  window.scrollTo(0, document.body.scrollHeight);
});
</script>
</body>
</html>
`))

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chatPage.Execute(w, map[string]string{"Model": s.model}); err != nil {
		s.log.Error("render chat page", "error", err)
	}
}
