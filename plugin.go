package dispatch

// PluginKey identifies one piece of typed data a plugin attaches to a
// Context, such as a session. Keys compare by identity, so two keys created
// with the same name never collide.
//
//	var sessionKey = dispatch.NewPluginKey[*Session]("session")
//
//	sessionKey.Set(ctx, session)
//	session, ok := sessionKey.Get(ctx)
type PluginKey[T any] struct {
	name string
}

func NewPluginKey[T any](name string) *PluginKey[T] {
	return &PluginKey[T]{name: name}
}

func (k *PluginKey[T]) Name() string {
	return k.name
}

func (k *PluginKey[T]) Set(ctx *Context, value T) {
	ctx.pluginValues[k] = value
}

// Get returns the value stored under the key. It returns the zero value and
// false when nothing is stored or the stored value is not a T.
func (k *PluginKey[T]) Get(ctx *Context) (T, bool) {
	v, ok := ctx.pluginValues[k]
	if !ok {
		var zero T
		return zero, false
	}
	value, ok := v.(T)
	return value, ok
}

func (k *PluginKey[T]) Has(ctx *Context) bool {
	_, ok := k.Get(ctx)
	return ok
}

func (k *PluginKey[T]) Delete(ctx *Context) {
	delete(ctx.pluginValues, k)
}
