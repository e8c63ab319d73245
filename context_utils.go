package dispatch

// These helpers expose Context internals to middleware packages and tests
// that build a Context with NewContext instead of going through a Server.

func CtxFree(ctx *Context) {
	ctx.free()
}

func CtxSetParams(ctx *Context, params Params) {
	ctx.params = params
}

func CtxSetDialog(ctx *Context, dialog *Dialog) {
	ctx.dialog = dialog
}
