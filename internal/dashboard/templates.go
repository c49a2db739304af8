package dashboard

import (
	"html/template"

	"github.com/sithafal/sithafal/internal/quarantine"
)

var tmplFuncs = template.FuncMap{
	"avatar":     senderAvatar,
	"senderCell": senderCell,
	"bulkPrompt": quarantine.BulkDeletePrompt,
	"deletePrompt": func() string {
		return quarantine.DeletePrompt
	},
	"count": func(c quarantine.Counts, t quarantine.Tag) int {
		return c.ForTag(t)
	},
	"date": func(r quarantine.Row) string {
		if r.Received.IsZero() {
			return "Unknown"
		}
		return r.Received.Format(quarantine.DateLayout)
	},
	"clock": func(r quarantine.Row) string {
		if r.Received.IsZero() {
			return ""
		}
		return r.Received.Format(quarantine.TimeLayout)
	},
}

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>sithafal · sign in</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
:root{
  --bg:#f1f5f9;--surface:#ffffff;--border:#e2e8f0;
  --text:#0f172a;--text2:#475569;--text3:#94a3b8;
  --accent:#3b82f6;--accent-dim:#2563eb;--danger:#ef4444;
  --mono:'SF Mono','Fira Code','JetBrains Mono',monospace;
  --sans:Inter,-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;
}
body{font-family:var(--sans);background:var(--bg);color:var(--text);min-height:100vh;display:flex;align-items:center;justify-content:center}
.login-card{background:var(--surface);border:1px solid var(--border);border-radius:16px;padding:48px 40px;max-width:400px;width:100%;text-align:center;box-shadow:0 10px 30px rgba(15,23,42,0.08)}
.logo{font-size:1.5rem;font-weight:700;margin-bottom:8px}
.logo span{color:var(--accent)}
.subtitle{color:var(--text2);font-size:0.9rem;margin-bottom:28px}
.help{color:var(--text3);font-size:0.8rem;margin-bottom:24px;line-height:1.6}
.help code{background:var(--bg);padding:2px 6px;border-radius:4px;font-family:var(--mono);font-size:0.75rem;color:var(--accent)}
input[type=text]{width:100%;padding:14px 16px;border:1px solid var(--border);border-radius:10px;font-family:var(--mono);font-size:1.2rem;text-align:center;letter-spacing:4px;outline:none}
input[type=text]:focus{border-color:var(--accent)}
button{width:100%;padding:12px;margin-top:16px;background:var(--accent);color:#fff;border:none;border-radius:10px;font-size:0.9rem;font-weight:600;cursor:pointer}
button:hover{background:var(--accent-dim)}
.error{color:var(--danger);font-size:0.82rem;margin-top:12px}
</style>
</head>
<body>
<div class="login-card">
  <div class="logo">sitha<span>fal</span></div>
  <div class="subtitle">Email Security Dashboard</div>
  <p class="help">Enter the access code shown in your terminal.<br>Run <code>sithafal serve</code> to get a code.</p>
  <form method="POST" action="/dashboard/login" autocomplete="off">
    <input type="text" name="code" placeholder="access code" autofocus required>
    <button type="submit">Sign in</button>
  </form>
  {{if .}}{{if .Error}}<p class="error">{{.Error}}</p>{{end}}{{end}}
</div>
</body>
</html>`))

const layoutHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>sithafal · {{.Active.Title}}</title>
<script src="https://unpkg.com/htmx.org@2.0.4" integrity="sha384-HGfztofotfshcF7+8n44JQL2oJmowVChPTg48S+jvZoztPfvwD79OC/LTtG6dMp+" crossorigin="anonymous"></script>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">
<style>
*{margin:0;padding:0;box-sizing:border-box}
:root{
  --bg:#f8fafc;--surface:#ffffff;--surface2:#f1f5f9;--border:#e2e8f0;
  --text:#0f172a;--text2:#475569;--text3:#94a3b8;
  --accent:#3b82f6;--accent-dim:#2563eb;
  --danger:#ef4444;--success:#10b981;--warn:#f59e0b;
  --mono:'SF Mono','Fira Code','JetBrains Mono',monospace;
  --sans:Inter,-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;
}
body.dark-mode{--bg:#0f172a;--surface:#1e293b;--surface2:#334155;--border:#334155;--text:#f1f5f9;--text2:#cbd5e1;--text3:#64748b}
body{font-family:var(--sans);background:var(--bg);color:var(--text);min-height:100vh;display:flex}

/* Sidebar */
aside{width:240px;background:var(--surface);border-right:1px solid var(--border);padding:24px 16px;position:sticky;top:0;height:100vh}
aside .logo{font-size:1.25rem;font-weight:700;margin:0 8px 28px;display:block;color:var(--text);text-decoration:none}
aside .logo span{color:var(--accent)}
aside a.nav{display:flex;align-items:center;gap:10px;padding:10px 12px;border-radius:10px;color:var(--text2);text-decoration:none;font-size:0.88rem;margin-bottom:4px}
aside a.nav:hover{background:var(--surface2);color:var(--text)}
aside a.nav.active{background:var(--accent);color:#fff}

/* Header */
.shell{flex:1;min-width:0}
header{display:flex;align-items:center;gap:16px;padding:16px 32px;background:var(--surface);border-bottom:1px solid var(--border);position:sticky;top:0;z-index:50}
header .search{flex:1;max-width:420px;position:relative}
header .search input{width:100%;padding:10px 14px;border:1px solid var(--border);border-radius:10px;background:var(--bg);color:var(--text);outline:none}
header .spacer{flex:1}
.icon-btn{background:none;border:1px solid var(--border);color:var(--text2);border-radius:10px;padding:8px 12px;cursor:pointer;position:relative}
.icon-btn .count{position:absolute;top:-6px;right:-6px;background:var(--danger);color:#fff;border-radius:10px;font-size:0.65rem;padding:1px 6px}
#notification-dropdown{position:absolute;right:32px;top:64px;width:340px;background:var(--surface);border:1px solid var(--border);border-radius:12px;box-shadow:0 10px 30px rgba(15,23,42,0.12);display:none}
#notification-dropdown.open{display:block}
.note-item{display:flex;gap:10px;padding:12px 16px;border-bottom:1px solid var(--border);font-size:0.82rem}
.note-item:last-child{border-bottom:none}
.search-results{position:absolute;top:46px;left:0;right:0;background:var(--surface);border:1px solid var(--border);border-radius:10px;max-height:300px;overflow:auto}

/* Main */
main{padding:28px 32px;max-width:1280px}
h1{font-size:1.5rem;font-weight:700;margin-bottom:6px}
.page-desc{color:var(--text2);font-size:0.88rem;margin-bottom:24px}
.card{background:var(--surface);border:1px solid var(--border);border-radius:16px;padding:20px;margin-bottom:20px}
.card h2{font-size:1rem;font-weight:600;margin-bottom:16px;display:flex;align-items:center;gap:8px}
.btn{display:inline-flex;align-items:center;gap:6px;padding:8px 14px;background:var(--accent);color:#fff;border:none;border-radius:8px;font-size:0.82rem;font-weight:600;cursor:pointer}
.btn:hover{background:var(--accent-dim)}
.btn:disabled{opacity:0.45;cursor:not-allowed}
.btn-ghost{background:var(--surface2);color:var(--text2)}
.btn-danger{background:var(--danger)}
.btn-success{background:var(--success)}
.empty{color:var(--text3);text-align:center;padding:40px 0;font-size:0.88rem}
.error-banner{background:#ef444415;color:var(--danger);border:1px solid #ef444440;border-radius:10px;padding:12px 16px;margin-bottom:20px;font-size:0.85rem}

/* Toasts */
#toasts{position:fixed;top:20px;right:20px;z-index:300;display:flex;flex-direction:column;gap:10px}
.toast{color:#fff;padding:14px 18px;border-radius:12px;font-size:0.85rem;display:flex;align-items:center;gap:10px;box-shadow:0 10px 25px rgba(0,0,0,0.15);min-width:280px;animation:slideIn 0.3s ease}
@keyframes slideIn{from{transform:translateX(100%);opacity:0}to{transform:translateX(0);opacity:1}}

/* Avatars */
.avatar{vertical-align:middle;border-radius:50%;flex-shrink:0}
.sender-cell{display:inline-flex;align-items:center;gap:8px}

@media(max-width:768px){
  aside{display:none}
  header,main{padding-left:16px;padding-right:16px}
}
</style>
</head>
<body class="{{if eq .Theme "dark"}}dark-mode{{end}}">
<aside>
  <a href="/dashboard" class="logo">sitha<span>fal</span></a>
  {{range .Pages}}
  <a href="/dashboard/{{.}}" class="nav{{if eq . $.Active}} active{{end}}">{{.Title}}</a>
  {{end}}
  <form method="POST" action="/dashboard/logout" style="margin-top:24px"><button class="btn btn-ghost" type="submit">Sign out</button></form>
</aside>
<div class="shell">
<header>
  <div class="search">
    <form hx-get="/dashboard/api/search" hx-vals='{"submit":"1"}' hx-target="#search-results">
      <input type="text" name="q" placeholder="Search emails... (Ctrl+K)" hx-get="/dashboard/api/search" hx-trigger="input changed delay:300ms" hx-target="#search-results">
    </form>
    <div id="search-results"></div>
  </div>
  <div class="spacer"></div>
  <button class="icon-btn" id="theme-toggle" title="Toggle theme"><i class="fas fa-moon"></i></button>
  <button class="icon-btn" id="bell" hx-get="/dashboard/api/notifications" hx-target="#notification-dropdown" onclick="document.getElementById('notification-dropdown').classList.toggle('open')">
    <i class="fas fa-bell"></i>{{if .Unread}}<span class="count" id="unread">{{.Unread}}</span>{{else}}<span class="count" id="unread" style="display:none">0</span>{{end}}
  </button>
  <div id="notification-dropdown"></div>
</header>
<main>
{{if .Error}}<div class="error-banner">{{.Error}}</div>{{end}}`

const layoutFoot = `</main>
</div>
<div id="toasts"></div>

<script>
var initialToasts = {{.Toasts}};
function showToast(t) {
  var el = document.createElement('div');
  el.className = 'toast';
  el.style.background = t.color;
  el.innerHTML = '<i class="fas ' + t.icon + '"></i><span></span>';
  el.querySelector('span').textContent = t.message;
  document.getElementById('toasts').appendChild(el);
  setTimeout(function() { el.remove(); }, 5000);
}
(initialToasts || []).forEach(showToast);

// Pop-ups raised by htmx requests arrive in the HX-Trigger header.
document.body.addEventListener('notify', function(e) {
  (e.detail.value || []).forEach(showToast);
});

// The notification stream only feeds the unread badge.
var unread = document.getElementById('unread');
var events = new EventSource('/dashboard/api/events');
events.addEventListener('notification', function() {
  unread.style.display = '';
  unread.textContent = String(parseInt(unread.textContent || '0', 10) + 1);
});

document.getElementById('theme-toggle').addEventListener('click', function() {
  fetch('/dashboard/api/theme', {method: 'POST'}).then(function(r) { return r.json(); }).then(function(res) {
    document.body.classList.toggle('dark-mode', res.theme === 'dark');
    if (window.applyCharts) window.applyCharts(res.charts);
  });
});

document.addEventListener('keydown', function(e) {
  if ((e.ctrlKey || e.metaKey) && e.key === 'k') {
    e.preventDefault();
    var q = document.querySelector('header .search input');
    q.focus();
    q.select();
  }
  if (e.key === 'Escape') {
    document.getElementById('notification-dropdown').classList.remove('open');
    var modal = document.getElementById('preview-modal');
    if (modal) modal.innerHTML = '';
  }
});
</script>
</body>
</html>`

var searchResultsTmpl = template.Must(template.New("search-results").Funcs(tmplFuncs).Parse(`
{{if .Ran}}
<div class="search-results">
  {{range .Rows}}
  <div class="note-item">{{senderCell .Sender}}<span style="color:var(--text2)">{{.Subject}}</span></div>
  {{else}}
  <div class="empty">No quarantined emails match.</div>
  {{end}}
</div>
{{end}}`))

var notificationsTmpl = template.Must(template.New("notifications").Parse(`
{{range .}}
<div class="note-item" id="note-{{.ID}}">
  <i class="fas {{.Icon}}" style="color:{{.Color}}"></i>
  <span style="flex:1">{{.Message}}</span>
  <button class="icon-btn" hx-post="/dashboard/api/notifications/{{.ID}}/dismiss" hx-target="#note-{{.ID}}" hx-swap="delete">&times;</button>
</div>
{{else}}
<div class="empty">No notifications</div>
{{end}}`))
