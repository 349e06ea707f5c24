package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockable maps CDP resource types to config names. Stylesheets are never
// blocked: a page without its sheets would be captured with no CSSOM.
var blockable = map[proto.NetworkResourceType]string{
	proto.NetworkResourceTypeImage: "images",
	proto.NetworkResourceTypeFont:  "fonts",
	proto.NetworkResourceTypeMedia: "media",
}

// blockSet normalises configured names, dropping those that cannot be
// blocked.
func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		for _, name := range blockable {
			if name == t {
				set[t] = true
			}
		}
	}
	return set
}

func shouldBlock(set map[string]bool, resType proto.NetworkResourceType) bool {
	name, ok := blockable[resType]
	return ok && set[name]
}

// applyResourceBlocking fails matching requests before they leave the
// browser. The returned router must be stopped when the tab closes.
func applyResourceBlocking(page *rod.Page, types []string) *rod.HijackRouter {
	set := blockSet(types)
	if len(set) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(set, ctx.Request.Type()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
