// Package pagetest provides an in-memory page.Page for tests.
//
// Markup is parsed with golang.org/x/net/html and queried with goquery.
// Shadow roots are written declaratively, the way servers stream them:
//
//	<bili-comments>
//	  <template shadowrootmode="open">
//	    <div id="feed">...</div>
//	  </template>
//	</bili-comments>
//
// Lookups respect shadow encapsulation: a selector only matches nodes in the
// same tree scope as the element it is run from, so reaching into a shadow
// root requires an explicit Shadow call, exactly as in a browser.
//
// Interactions are recorded and can trigger hooks that rewrite the document,
// which is how tests simulate lazy loading and paged reply lists. Nodes
// removed by a hook become stale and every operation on them fails with
// page.ErrStale.
package pagetest
