package fetchstrategy

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypeByName maps the spec's lower-case resource class names to
// Rod protocol resource types.
var resourceTypeByName = map[string]proto.NetworkResourceType{
	"image":      proto.NetworkResourceTypeImage,
	"stylesheet": proto.NetworkResourceTypeStylesheet,
	"font":       proto.NetworkResourceTypeFont,
	"media":      proto.NetworkResourceTypeMedia,
	"script":     proto.NetworkResourceTypeScript,
}

// setupHijack installs a request interceptor that blocks the given
// resource classes. Returns nil (and installs nothing) if blocked is empty.
//
// Grounded on scraper/hijack.go's setupHijack, generalized from that
// file's capitalized config-string keys to the spec's lower-case resource
// class vocabulary (image|stylesheet|font|media|script).
func setupHijack(page *rod.Page, blockedClasses []string) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedClasses))
	for _, name := range blockedClasses {
		if rt, ok := resourceTypeByName[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, shouldBlock := blocked[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
