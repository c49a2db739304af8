package dashboard

import "html/template"

const quarantineStyle = `<style>
.q-header{display:flex;align-items:flex-end;justify-content:space-between;margin-bottom:20px}
.quick-stats{display:flex;gap:16px}
.quick-stat{background:var(--surface);border:1px solid var(--border);border-radius:12px;padding:10px 16px;text-align:center;min-width:90px}
.stat-number{display:block;font-size:1.4rem;font-weight:700}
.stat-label{font-size:0.72rem;color:var(--text3);text-transform:uppercase}
.q-filters{display:flex;gap:12px;align-items:center;margin-bottom:16px;flex-wrap:wrap}
.filter-tab{padding:8px 14px;border-radius:8px;border:1px solid var(--border);background:var(--surface);color:var(--text2);cursor:pointer;font-size:0.82rem}
.filter-tab.active{background:var(--accent);border-color:var(--accent);color:#fff}
.filter-tab .n{margin-left:6px;opacity:0.75}
.q-filters input{flex:1;min-width:200px;padding:9px 12px;border:1px solid var(--border);border-radius:8px;background:var(--surface);color:var(--text);outline:none}
.bulk{display:flex;gap:8px;margin-left:auto}
table.q{width:100%;border-collapse:collapse;font-size:0.85rem}
table.q th{text-align:left;color:var(--text3);font-size:0.72rem;text-transform:uppercase;letter-spacing:1px;padding:10px 12px;border-bottom:1px solid var(--border)}
table.q td{padding:12px;border-bottom:1px solid var(--border);color:var(--text2)}
table.q tr.selected td{background:#3b82f610}
.risk{padding:3px 10px;border-radius:12px;font-size:0.72rem;font-weight:600}
.risk-high{background:#ef444420;color:var(--danger)}
.risk-medium{background:#f59e0b20;color:var(--warn)}
.risk-low{background:#10b98120;color:var(--success)}
.row-actions{display:flex;gap:6px}
.row-actions .btn{padding:5px 9px;font-size:0.75rem}
.modal-backdrop{position:fixed;inset:0;background:rgba(15,23,42,0.45);display:flex;align-items:center;justify-content:center;z-index:200}
.modal{background:var(--surface);border-radius:16px;padding:24px;width:480px;max-width:92vw}
.modal .field{margin-bottom:12px}
.modal .label{font-size:0.72rem;color:var(--text3);text-transform:uppercase}
</style>`

// quarantinePanel is the part of the quarantine page that every htmx action
// re-renders.
const quarantinePanel = `{{define "panel"}}
{{$v := .Quarantine}}
<div id="quarantine-panel">
  <div class="q-header">
    <div class="quick-stats">
      <div class="quick-stat"><span class="stat-number">{{$v.Counts.Total}}</span><span class="stat-label">Total</span></div>
      <div class="quick-stat"><span class="stat-number" style="color:var(--danger)">{{$v.Counts.High}}</span><span class="stat-label">High Risk</span></div>
      <div class="quick-stat"><span class="stat-number" style="color:var(--warn)">{{$v.Counts.Medium}}</span><span class="stat-label">Medium Risk</span></div>
    </div>
  </div>

  <div class="q-filters">
    {{range .Tags}}
    <button class="filter-tab{{if eq . $v.Filter.Tag}} active{{end}}" data-filter="{{.}}"
      hx-post="/dashboard/quarantine/filter" hx-vals='{"tag":"{{.}}"}' hx-target="#quarantine-panel" hx-swap="outerHTML">
      {{.Label}}<span class="n">{{count $v.Counts .}}</span>
    </button>
    {{end}}
    <input type="text" name="q" value="{{$v.Filter.Query}}" placeholder="Search sender or subject..."
      hx-post="/dashboard/quarantine/search" hx-trigger="input changed delay:{{.DebounceMS}}ms"
      hx-target="#quarantine-table" hx-select="#quarantine-table" hx-swap="outerHTML" autocomplete="off">
    <div class="bulk">
      <button class="btn btn-success bulk-release"{{if not $v.Bulk.Enabled}} disabled{{end}}
        hx-post="/dashboard/quarantine/bulk/release" hx-target="#quarantine-panel" hx-swap="outerHTML">
        <i class="fas fa-paper-plane"></i> {{$v.Bulk.ReleaseLabel}}
      </button>
      <button class="btn btn-danger bulk-delete"{{if not $v.Bulk.Enabled}} disabled{{end}}
        hx-post="/dashboard/quarantine/bulk/delete" hx-vals='{"confirm":"yes"}' hx-confirm="{{bulkPrompt $v.Bulk.Count}}"
        hx-target="#quarantine-panel" hx-swap="outerHTML">
        <i class="fas fa-trash"></i> {{$v.Bulk.DeleteLabel}}
      </button>
    </div>
  </div>

  <div class="card" id="quarantine-table" style="padding:0">
  {{if $v.Rows}}
  <table class="q">
    <thead>
      <tr>
        <th style="width:36px">
          <input type="checkbox" id="select-all" data-state="{{$v.SelectAll}}"{{if eq $v.SelectAll.String "checked"}} checked{{end}}
            hx-post="/dashboard/quarantine/select-all" hx-vals='{"checked":"{{ne $v.SelectAll.String "checked"}}"}'
            hx-target="#quarantine-panel" hx-swap="outerHTML">
        </th>
        <th>Sender</th><th>Subject</th><th>Received</th><th>Risk</th><th></th>
      </tr>
    </thead>
    <tbody>
    {{range $v.Rows}}
      <tr class="email-row{{if .Selected}} selected{{end}}" data-id="{{.ID}}" data-risk="{{.Risk}}">
        <td>
          <input type="checkbox" class="email-checkbox"{{if .Selected}} checked{{end}}
            hx-post="/dashboard/quarantine/rows/{{.ID}}/select" hx-vals='{"checked":"{{not .Selected}}"}'
            hx-target="#quarantine-panel" hx-swap="outerHTML">
        </td>
        <td>{{senderCell .Sender}}</td>
        <td>{{.Subject}}</td>
        <td>{{date .Row}}<br><small style="color:var(--text3)">{{clock .Row}}</small></td>
        <td><span class="risk risk-{{.Risk}}">{{.Risk.Label}}</span></td>
        <td class="row-actions">
          <button class="btn btn-ghost" title="Preview" hx-get="/dashboard/quarantine/rows/{{.ID}}/preview" hx-target="#preview-modal"><i class="fas fa-eye"></i></button>
          <button class="btn btn-success" title="Release" hx-post="/dashboard/quarantine/rows/{{.ID}}/release" hx-target="#quarantine-panel" hx-swap="outerHTML"><i class="fas fa-paper-plane"></i></button>
          <button class="btn btn-danger" title="Delete" hx-delete="/dashboard/quarantine/rows/{{.ID}}" hx-vals='{"confirm":"yes"}' hx-confirm="{{deletePrompt}}" hx-target="#quarantine-panel" hx-swap="outerHTML"><i class="fas fa-trash"></i></button>
        </td>
      </tr>
    {{end}}
    </tbody>
  </table>
  {{else}}
  <div class="empty">No quarantined emails match the current view.</div>
  {{end}}
  </div>
</div>
{{end}}`

var quarantinePageTmpl = template.Must(template.New("quarantine").Funcs(tmplFuncs).Parse(layoutHead + quarantineStyle + `
<h1>Quarantine</h1>
<p class="page-desc">Review held emails. Release what is safe, delete what is not.</p>
{{template "panel" .}}
<div id="preview-modal"></div>
<script>
function syncSelectAll() {
  var box = document.getElementById('select-all');
  if (box) box.indeterminate = box.dataset.state === 'indeterminate';
}
syncSelectAll();
document.body.addEventListener('htmx:afterSwap', syncSelectAll);
</script>
` + layoutFoot + quarantinePanel))

var quarantinePanelTmpl = template.Must(template.New("quarantine-panel").Funcs(tmplFuncs).Parse(`{{template "panel" .}}` + quarantinePanel))

var previewTmpl = template.Must(template.New("preview").Parse(`
<div class="modal-backdrop" onclick="if (event.target === this) this.parentElement.innerHTML = ''">
  <div class="modal">
    <h2 style="margin-bottom:16px">Email Preview</h2>
    <div class="field"><div class="label">From</div>{{.Sender}}</div>
    <div class="field"><div class="label">Subject</div>{{.Subject}}</div>
    <div class="field"><div class="label">Date</div>{{or .Date "Unknown"}}</div>
    <div class="field"><div class="label">Risk Level</div>{{.Risk}}</div>
    <div style="display:flex;gap:8px;justify-content:flex-end;margin-top:20px">
      <button class="btn btn-ghost" onclick="document.getElementById('preview-modal').innerHTML = ''">Close</button>
      <button class="btn btn-success" hx-post="/dashboard/quarantine/rows/{{.ID}}/release" hx-target="#quarantine-panel" hx-swap="outerHTML"
        onclick="document.getElementById('preview-modal').innerHTML = ''">Release</button>
    </div>
  </div>
</div>`))
