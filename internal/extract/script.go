package extract

// extractionScript runs inside the page and gathers every video signal class
// in one pass. It must stay self-contained (no page globals) and return a
// plain JSON-serializable object for returnByValue.
const extractionScript = `(function() {
	var html = document.documentElement.outerHTML;
	var findings = {
		streamable: (html.match(/(?:cdn-cf-east\.)?streamable\.com\/(?:image\/)?[a-z0-9]{6,}/gi) || []),
		youtube: (html.match(/(?:youtube\.com\/(?:watch\?v=|embed\/)|youtu\.be\/)[A-Za-z0-9_-]{11}/g) || []),
		vimeo: (html.match(/(?:player\.)?vimeo\.com\/(?:video\/)?[0-9]+/gi) || []),
		wistia: [],
		iframes: [],
		video_elements: []
	};
	document.querySelectorAll('[class*="wistia"], [id*="wistia"]').forEach(function(el) {
		var m = ((el.className || '') + ' ' + (el.id || '')).match(/[a-z0-9]{10}/i);
		if (m) findings.wistia.push(m[0]);
	});
	document.querySelectorAll('script[src*="wistia"]').forEach(function(el) {
		var m = el.src.match(/medias\/([a-z0-9]{10})/i);
		if (m) findings.wistia.push(m[1]);
	});
	document.querySelectorAll('iframe').forEach(function(el) {
		findings.iframes.push({
			src: el.src || '',
			id: el.id || '',
			class: el.className || ''
		});
	});
	document.querySelectorAll('video').forEach(function(el) {
		var sources = [];
		el.querySelectorAll('source').forEach(function(s) {
			if (s.src) sources.push(s.src);
		});
		findings.video_elements.push({src: el.src || '', sources: sources});
	});
	return {
		findings: findings,
		pageInfo: {
			title: document.title,
			url: window.location.href,
			htmlSize: html.length
		}
	};
})()`

// rawHTMLScript snapshots the whole document for source-level pattern
// matching when the structured pass finds nothing.
const rawHTMLScript = `document.documentElement.outerHTML`

// authProbeScript samples the signed-in state of the gated site without
// touching any video page.
const authProbeScript = `(function() {
	var body = document.body ? document.body.innerText : '';
	return {
		title: document.title,
		url: window.location.href,
		bodyLength: body.length,
		hasSignIn: /sign in|log in|create account/i.test(body),
		hasLibrary: /library|my account|sign out|log out/i.test(body),
		hasPaywall: /subscribe now|membership required|upgrade to watch/i.test(body)
	};
})()`
