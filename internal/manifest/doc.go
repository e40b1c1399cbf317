// Package manifest loads the list of views a host creates at startup.
//
// The format follows the file extension: .yaml/.yml or .toml. layer is hud
// (the default) or scene; hud views are offered input first.
//
//	views:
//	  - name: hud
//	    url: asset://hud/index.html
//	    width: 512
//	    height: 128
//	    consume_mouse: true
//	  - name: status
//	    url: data:text/html,<h1>ok</h1>
//	    layer: scene
//	    transparent: false
package manifest
