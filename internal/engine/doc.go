/*
Package engine is a headless, single-threaded content engine that plugs into
the bridge as its Toolkit.

# Overview

A Toolkit owns every Page. Pages parse HTML with goquery, run inline scripts
and host-submitted scripts in a per-page goja runtime, dispatch resolved mouse
and key events to script listeners, and rasterise the document into an RGBA
buffer. All of that happens on the caller's goroutine; the bridge worker is
the only caller.

# Loading

	about:blank, data:   resolved synchronously inside Navigate
	file://, http(s)://  fetched on a background goroutine and delivered by
	                     the next ProcessEvents

Remote fetches go through resty on top of a retryablehttp client, with one
circuit breaker per origin. Bytes are sniffed with mimetype, decoded to UTF-8
(chardet when no charset is declared) and, when configured, remote HTML is
sanitised with bluemonday before it is parsed.

# Script Surface

	console.log/info/warn/error     captured, logged at debug
	engine.emit(name, payload)      queues an event for the host
	document.title, querySelector(All), getElementById, xpath
	document.addEventListener(type, fn) / window.addEventListener
	setTimeout, setInterval         accepted, never fire

require, process, module and exports are removed. Evaluation is interrupted
after Config.ScriptTimeout.
*/
package engine
