package http

import (
	"html/template"
	"net/http"
)

// The callback endpoint is the only page a human sees; keep it
// self-contained so it renders without any static assets.

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Patreon Connected</title>
  <style>
    body { font-family: -apple-system, sans-serif; text-align: center; padding-top: 8em; color: #333; }
    h1 { color: #2a9d52; }
  </style>
</head>
<body>
  <h1>Connected</h1>
  <p>Your Patreon account is now linked. You can close this window and return to the plugin.</p>
</body>
</html>
`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Authorization Failed</title>
  <style>
    body { font-family: -apple-system, sans-serif; text-align: center; padding-top: 8em; color: #333; }
    h1 { color: #c23b3b; }
  </style>
</head>
<body>
  <h1>Authorization Failed</h1>
  <p>{{.Message}}</p>
</body>
</html>
`))

func renderSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = successPage.Execute(w, nil)
}

func renderErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPage.Execute(w, struct{ Message string }{Message: message})
}
