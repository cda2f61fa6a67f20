package model

// Annotation holds request and response fields for a URL whose Page may
// not exist yet. Values are built fresh per event and merged by copy.
type Annotation struct {
	URL          string
	Method       *string
	StatusCode   *int
	ContentType  *string
	HasSetCookie *bool
	HasCookie    *bool
}

// Merge returns a copy of a with every field set on newer overriding it.
// The URL of newer wins when it is non-empty.
func (a Annotation) Merge(newer Annotation) Annotation {
	out := a
	if newer.URL != "" {
		out.URL = newer.URL
	}
	if newer.Method != nil {
		out.Method = Ptr(*newer.Method)
	}
	if newer.StatusCode != nil {
		out.StatusCode = Ptr(*newer.StatusCode)
	}
	if newer.ContentType != nil {
		out.ContentType = Ptr(*newer.ContentType)
	}
	if newer.HasSetCookie != nil {
		out.HasSetCookie = Ptr(*newer.HasSetCookie)
	}
	if newer.HasCookie != nil {
		out.HasCookie = Ptr(*newer.HasCookie)
	}
	return out
}

// IsEmpty reports whether no annotation field is set.
func (a Annotation) IsEmpty() bool {
	return a.Method == nil && a.StatusCode == nil && a.ContentType == nil &&
		a.HasSetCookie == nil && a.HasCookie == nil
}
