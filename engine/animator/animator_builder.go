package animator

import "github.com/Carmen-Shannon/oxy-anim/engine/anim"

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithName is an option builder that sets the instance name used in logs and passed to the proxy.
// Defaults to the class name.
//
// Parameters:
//   - name: the instance name
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the name option to an animator
func WithName(name string) AnimatorBuilderOption {
	return func(a *animator) {
		a.name = name
	}
}

// WithProxyOptions is an option builder that forwards options to the underlying proxy.
//
// Parameters:
//   - options: the proxy options, applied in order after the name
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the proxy options to an animator
func WithProxyOptions(options ...anim.ProxyBuilderOption) AnimatorBuilderOption {
	return func(a *animator) {
		a.proxyOptions = append(a.proxyOptions, options...)
	}
}

// WithNotifyHandler is an option builder that registers the handler receiving every notify.
func WithNotifyHandler(h NotifyHandler) AnimatorBuilderOption {
	return func(a *animator) {
		a.notifyHandler = h
	}
}

// WithMontageBlendingOutHandler is an option builder that registers the handler called once
// when a montage starts blending out.
func WithMontageBlendingOutHandler(h MontageEventHandler) AnimatorBuilderOption {
	return func(a *animator) {
		a.blendingOutHandler = h
	}
}

// WithMontageEndedHandler is an option builder that registers the handler called when a
// montage has fully blended out and stopped contributing.
func WithMontageEndedHandler(h MontageEventHandler) AnimatorBuilderOption {
	return func(a *animator) {
		a.endedHandler = h
	}
}
