package web

import (
	"fmt"
	"html/template"
	"time"

	"github.com/sweeney/bread-timer/internal/status"
	"github.com/sweeney/bread-timer/internal/walkthrough"
)

type pageData struct {
	View   walkthrough.View
	Status status.Snapshot
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(s status.Snapshot) string {
		d := s.Uptime().Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm", h, m)
		}
		return fmt.Sprintf("%dm %ds", m, int(d.Seconds())%60)
	},
	"inc":   func(i int) int { return i + 1 },
	"grams": func(w float64) string { return fmt.Sprintf("%.0f", w) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.View.RecipeTitle}}</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 1.5em auto; padding: 0 1em; }
h1 { font-size: 1.3em; }
h2 { font-size: 1.1em; margin-top: 0; }
.dots { display: flex; gap: 4px; margin: 1em 0; }
.dot { width: 10px; height: 10px; border-radius: 50%; background: #ddd; }
.dot.passed { background: #a57c52; }
.dot.active { background: #e07b00; transform: scale(1.4); }
.card { border: 1px solid #ddd; border-radius: 8px; padding: 1em; }
.note { font-style: italic; color: #666; }
.timer { font-family: monospace; font-size: 2.4em; text-align: center; margin: .4em 0; }
.timer.EXPIRED { color: #c00; }
.timer.PAUSED { color: #888; }
.label { text-align: center; color: #666; }
.row { display: flex; gap: .5em; justify-content: space-between; margin: 1em 0; }
form { display: inline; }
button { padding: .5em 1em; }
.alert { background: #c00; color: #fff; }
img { max-width: 100%; }
footer { color: #888; font-size: .8em; margin-top: 2em; }
</style>
</head>
<body>
<h1>{{.View.RecipeTitle}}</h1>

<div class="dots">{{range .View.Progress}}<span class="dot {{.}}"></span>{{end}}</div>

<div class="card">
<h2>Étape {{inc .View.StepIndex}}/{{.View.StepCount}} : {{.View.Step.Title}}</h2>

{{if .View.Ingredients}}
<form method="post" action="/api/weight">
<label>Poids de pâte visé (g) <input name="weight" type="number" min="1" step="1" value="{{grams .View.Weight}}"></label>
<button type="submit">OK</button>
</form>
<ul>
{{range .View.Ingredients}}<li><strong>{{.Amount}} {{.Unit}}</strong> {{.Name}}</li>
{{end}}</ul>
{{end}}

<ul>
{{range .View.Step.Instructions}}<li>{{.}}</li>
{{end}}</ul>
{{if .View.Step.Note}}<p class="note">{{.View.Step.Note}}</p>{{end}}

{{if .View.Image}}
<p><img src="{{.View.Image}}" alt="{{.View.Step.Title}}"></p>
{{if gt (len .View.Step.Images) 1}}<div class="row">
<form method="post" action="/api/image/prev"><button>‹</button></form>
<form method="post" action="/api/image/next"><button>›</button></form>
</div>{{end}}
{{end}}

{{if .View.Timer.HasTimer}}
<div id="timer" class="timer {{.View.Timer.State}}">{{.View.Timer.Display}}</div>
{{if .View.Timer.Label}}<div class="label">{{.View.Timer.Label}}</div>{{end}}
<div class="row">
<form method="post" action="/api/timer/toggle"><button id="timer-button"{{if .View.Alarm.Ringing}} class="alert"{{end}}>{{.View.Timer.Button}}</button></form>
<form method="post" action="/api/timer/reset"><button>Réinitialiser</button></form>
</div>
{{end}}
</div>

<div class="row">
<form method="post" action="/api/step/prev"><button{{if not .View.HasPrev}} disabled{{end}}>Précédent</button></form>
<form method="post" action="/api/step/next"><button{{if not .View.HasNext}} disabled{{end}}>Suivant</button></form>
</div>

<form method="post" action="/api/reset" onsubmit="return confirm('Tout recommencer ?')"><button>Recommencer</button></form>

<footer>
En ligne depuis {{uptime .Status}} · MQTT {{if .Status.MQTTConnected}}connecté{{else}}déconnecté{{end}}
· <a href="/index.json">JSON</a>
</footer>

<script>
(function() {
  var step = {{.View.StepIndex}};
  var timerEl = document.getElementById("timer");
  var buttonEl = document.getElementById("timer-button");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";

  function connect() {
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function(ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg.type !== "view") return;
      var v = msg.data;
      if (v.step_index !== step) { location.reload(); return; }
      if (timerEl) {
        timerEl.textContent = v.timer.display;
        timerEl.className = "timer " + v.timer.state;
      }
      if (buttonEl) {
        buttonEl.textContent = v.timer.button;
        buttonEl.className = v.alarm.ringing ? "alert" : "";
      }
    };
    ws.onclose = function() { setTimeout(connect, 5000); };
  }
  connect();
})();
</script>
</body>
</html>
`
