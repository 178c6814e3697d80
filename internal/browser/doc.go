// Package browser drives a Chromium browser through go-rod and exposes its
// tabs as page.Page values.
//
// The browser is either launched locally (headful by default, so a person can
// solve a login captcha) or attached to through a DevTools control URL.
// Cookies can be saved to and restored from a session file so that later runs
// start already logged in.
package browser
