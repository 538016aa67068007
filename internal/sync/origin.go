package sync

// OriginSource decides whether a bus event was raised by another
// instance.
type OriginSource interface {
	// IsForeign reports whether tag identifies a different instance.
	// Undeterminable origins (empty tag, unknown self identity) are not
	// foreign: the filter fails open, preferring a duplicate attempt the
	// other registry absorbs over silently dropped propagation.
	IsForeign(tag string) bool
}

// InstanceOrigin is the production OriginSource, backed by the identity
// assigned to this process at startup.
type InstanceOrigin struct {
	id string
}

// NewInstanceOrigin builds an origin source for the given instance id.
func NewInstanceOrigin(id string) *InstanceOrigin {
	return &InstanceOrigin{id: id}
}

// ID returns this instance's identity.
func (o *InstanceOrigin) ID() string {
	return o.id
}

// IsForeign reports whether tag identifies a different instance.
func (o *InstanceOrigin) IsForeign(tag string) bool {
	if o.id == "" || tag == "" {
		return false
	}
	return tag != o.id
}
