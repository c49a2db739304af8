package dashboard

import "html/template"

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(tmplFuncs).Parse(layoutHead + `
<style>
.stats{display:grid;grid-template-columns:repeat(4,1fr);gap:16px;margin-bottom:24px}
.stat-card{background:var(--surface);border:1px solid var(--border);border-radius:16px;padding:18px;cursor:pointer;transition:transform 0.2s}
.stat-card:hover{transform:translateY(-2px)}
.stat-title{color:var(--text3);font-size:0.75rem;text-transform:uppercase;letter-spacing:1px}
.stat-value{font-size:1.8rem;font-weight:700;margin:6px 0}
.stat-card canvas{height:40px!important}
.grid{display:grid;grid-template-columns:1fr 2fr;gap:20px}
.chart-box{position:relative;height:300px}
.threat-total{position:absolute;top:50%;left:50%;transform:translate(-50%,-50%);text-align:center;pointer-events:none}
.threat-total b{display:block;font-size:1.8rem}
.toolbar{display:flex;gap:10px;align-items:center;margin-bottom:20px}
.toolbar select{padding:8px 12px;border:1px solid var(--border);border-radius:8px;background:var(--surface);color:var(--text)}
@media(max-width:1024px){.grid{grid-template-columns:1fr}.stats{grid-template-columns:repeat(2,1fr)}}
</style>

<h1>Security Overview</h1>
<p class="page-desc">Email threat activity across your organisation.</p>

<div class="toolbar">
  <select id="period" name="period">
    {{range .Periods}}<option value="{{.}}"{{if eq . $.Period}} selected{{end}}>{{.}}</option>{{end}}
  </select>
  <button class="btn btn-ghost" id="refresh-btn"><i class="fas fa-rotate"></i> Refresh</button>
  <a class="btn" id="export-btn" href="/dashboard/api/export" download><i class="fas fa-download"></i> Export Report</a>
</div>

<div class="stats">
  <div class="stat-card"><div class="stat-title">Total Emails</div><div class="stat-value" id="stat-totalEmails">{{.Stats.TotalEmails}}</div><canvas id="emailTrendChart"></canvas></div>
  <div class="stat-card"><div class="stat-title">Quarantine</div><div class="stat-value" id="stat-quarantine">{{.Stats.Quarantine}}</div><canvas id="quarantineTrendChart"></canvas></div>
  <div class="stat-card"><div class="stat-title">Cleaned Emails</div><div class="stat-value" id="stat-cleanedEmails">{{.Stats.CleanedEmails}}</div><canvas id="cleanedTrendChart"></canvas></div>
  <div class="stat-card"><div class="stat-title">Users Protected</div><div class="stat-value" id="stat-usersProtected">{{.Stats.UsersProtected}}</div><canvas id="usersTrendChart"></canvas></div>
</div>

<div class="grid">
  <div class="card">
    <h2>Threat Breakdown</h2>
    <div class="chart-box"><canvas id="threatChart"></canvas><div class="threat-total"><b id="threat-total">0</b>threats</div></div>
  </div>
  <div class="card">
    <h2>Email Traffic</h2>
    <div class="chart-box"><canvas id="trafficChart"></canvas></div>
  </div>
</div>

<div class="card">
  <h2>Security Score</h2>
  <div class="chart-box"><canvas id="securityScoreChart"></canvas></div>
</div>

<script>
(function() {
  var instances = {};

  function sum(a) { return a.reduce(function(x, y) { return x + y; }, 0); }

  function draw(id, config) {
    var canvas = document.getElementById(id);
    if (!canvas || typeof Chart === 'undefined') return;
    if (instances[id]) instances[id].destroy();
    instances[id] = new Chart(canvas.getContext('2d'), config);
    if (id === 'threatChart') {
      document.getElementById('threat-total').textContent = sum(config.data.datasets[0].data);
    }
  }

  // applyCharts accepts either id -> config or id -> instance maps.
  window.applyCharts = function(all) {
    Object.keys(all || {}).forEach(function(id) {
      var v = all[id];
      draw(id, v.config || v);
    });
  };
  window.applyCharts({{.Charts}});

  function post(url, body) {
    return fetch(url, {method: 'POST', headers: {'Content-Type': 'application/x-www-form-urlencoded'}, body: body || ''})
      .then(function(r) {
        var trig = r.headers.get('HX-Trigger');
        if (trig) { try { (JSON.parse(trig).notify || []).forEach(showToast); } catch (e) {} }
        return r.json();
      });
  }

  document.getElementById('period').addEventListener('change', function() {
    post('/dashboard/api/period', 'period=' + encodeURIComponent(this.value)).then(window.applyCharts);
  });
  document.getElementById('refresh-btn').addEventListener('click', function() {
    post('/dashboard/api/refresh').then(window.applyCharts);
  });

  var resizeTimer;
  function sendViewport() {
    post('/dashboard/api/viewport', 'width=' + window.innerWidth).catch(function() {});
  }
  window.addEventListener('resize', function() {
    clearTimeout(resizeTimer);
    resizeTimer = setTimeout(function() {
      sendViewport();
      fetch('/dashboard/api/charts/trafficChart').then(function(r) { return r.json(); }).then(function(inst) {
        draw('trafficChart', inst.config);
      });
    }, 250);
  });
  sendViewport();

  var driftMS = {{.DriftMS}};
  if (driftMS > 0) {
    setInterval(function() {
      fetch('/dashboard/api/stats').then(function(r) { return r.json(); }).then(function(res) {
        Object.keys(res.stats).forEach(function(k) {
          var el = document.getElementById('stat-' + k);
          if (el) el.textContent = res.stats[k];
        });
        var threat = instances['threatChart'];
        if (threat) {
          threat.data.datasets[0].data = res.threat;
          threat.update('none');
          document.getElementById('threat-total').textContent = sum(res.threat);
        }
      });
    }, driftMS);
  }
})();
</script>
` + layoutFoot))
