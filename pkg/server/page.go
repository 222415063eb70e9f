package server

// pageShell wraps the server-rendered body in the HTML page that carries
// the client runtime. The script mirrors the wire protocol in frames.go:
// hello/welcome handshake, mount replaces the static body, patches mutate
// the live DOM, events flow back as event frames.
func pageShell(body string) string {
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>reactor</title>
</head>
<body>
<div id="app">` + body + `</div>
<script>
(function () {
  var nodes = {};
  var sessionKey = "reactor-session";

  function build(w) {
    var el;
    if (w.kind === 1) {
      el = document.createTextNode(w.text || "");
    } else if (w.kind === 2) {
      el = document.createDocumentFragment();
    } else {
      el = document.createElement(w.tag);
      var attrs = w.attrs || {};
      for (var k in attrs) el.setAttribute(k, attrs[k]);
      (w.events || []).forEach(function (name) { bind(el, w.nid, name); });
    }
    if (w.nid) nodes[w.nid] = el;
    (w.children || []).forEach(function (c) { el.appendChild(build(c)); });
    return el;
  }

  function bind(el, nid, name) {
    el.addEventListener(name, function (ev) {
      var value = "";
      if (el.value !== undefined) value = String(el.value);
      send({ t: "event", nid: nid, name: name, value: value });
      ev.preventDefault();
    });
  }

  function apply(p) {
    var target = nodes[p.nid];
    switch (p.op) {
      case 1: // set text
        if (target) target.textContent = p.value;
        break;
      case 2: // set attr
        if (target) target.setAttribute(p.key, p.value);
        break;
      case 3: // remove attr
        if (target) target.removeAttribute(p.key);
        break;
      case 4: { // insert
        var parent = p.parent ? nodes[p.parent] : root;
        var el = build(p.node);
        parent.insertBefore(el, parent.childNodes[p.index] || null);
        break;
      }
      case 5: // remove
        if (target && target.parentNode) target.parentNode.removeChild(target);
        delete nodes[p.nid];
        break;
      case 6: { // move
        var parent = p.parent ? nodes[p.parent] : root;
        if (target) parent.insertBefore(target, parent.childNodes[p.index] || null);
        break;
      }
      case 7: { // replace
        var el = build(p.node);
        if (target && target.parentNode) target.parentNode.replaceChild(el, target);
        delete nodes[p.nid];
        break;
      }
    }
  }

  var root = document.getElementById("app");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  function send(frame) { ws.send(JSON.stringify(frame)); }

  ws.onopen = function () {
    send({ t: "hello", session: sessionStorage.getItem(sessionKey) || "" });
  };

  ws.onmessage = function (msg) {
    var frame = JSON.parse(msg.data);
    switch (frame.t) {
      case "welcome":
        sessionStorage.setItem(sessionKey, frame.session);
        break;
      case "mount":
        nodes = {};
        root.textContent = "";
        root.appendChild(build(frame.root));
        break;
      case "patch":
        (frame.patches || []).forEach(apply);
        break;
      case "error":
        console.error("reactor:", frame.code, frame.message);
        break;
      case "unmount":
        root.textContent = "";
        break;
    }
  };
})();
</script>
</body>
</html>
`
}
