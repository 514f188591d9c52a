package http

import "html/template"

const callbackTemplateName = "oauth_callback"

// callbackPage corre en el popup abierto por el login: reenvía code/state al
// endpoint de canje y avisa a la ventana padre, solo en el mismo origen.
var callbackPage = template.Must(template.New(callbackTemplateName).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Signing in</title>
<style>
body { font-family: sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; background: #eef2ff; }
.box { background: #fff; padding: 2rem; border-radius: 12px; box-shadow: 0 4px 16px rgba(0,0,0,.1); text-align: center; max-width: 24rem; }
</style>
</head>
<body>
<div class="box">
  <h2 id="title">Signing in...</h2>
  <p id="message">Verifying authorization code...</p>
</div>
<script>
(function () {
  var code = {{.Code}};
  var state = {{.State}};
  var oauthError = {{.Error}};
  var exchangeURL = {{.ExchangeURL}};
  var redirectURI = {{.RedirectURI}};
  var origin = window.location.origin;

  function show(title, message) {
    document.getElementById("title").textContent = title;
    document.getElementById("message").textContent = message;
  }
  function notify(payload) {
    if (window.opener) {
      window.opener.postMessage(payload, origin);
    }
  }
  function fail(message) {
    show("Sign-in failed", message);
    notify({ type: "OAUTH_ERROR", error: message });
    setTimeout(function () { window.close(); }, 3000);
  }

  if (oauthError) {
    fail("OAuth error: " + oauthError);
    return;
  }
  if (!code) {
    notify({ type: "CHECK_URL_PARAMS", url: window.location.href });
    return;
  }
  notify({ type: "oauth_authorize_result", code: code, state: state });

  fetch(exchangeURL, {
    method: "POST",
    credentials: "same-origin",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ code: code, state: state, redirect_uri: redirectURI })
  })
    .then(function (res) {
      return res.json().catch(function () { return {}; }).then(function (body) {
        if (!res.ok || !body.success) {
          throw new Error(body.error || "Sign-in verification failed");
        }
        return body;
      });
    })
    .then(function (body) {
      show("Signed in", "This window will close automatically.");
      notify({ type: "OAUTH_SUCCESS", user: body.user });
      setTimeout(function () { window.close(); }, 1500);
    })
    .catch(function (err) { fail(err.message); });
})();
</script>
</body>
</html>
`))

type callbackPageData struct {
	Code        string
	State       string
	Error       string
	ExchangeURL string
	RedirectURI string
}
