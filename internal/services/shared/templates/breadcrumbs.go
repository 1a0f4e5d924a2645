package templates

import "strings"

// BreadcrumbItem represents one breadcrumb entry in a page trail.
type BreadcrumbItem struct {
	// Label is the visible breadcrumb text.
	Label string
	// URL is the optional destination; the last item is rendered without one.
	URL string
}

func writeBreadcrumbs(hw *Writer, items []BreadcrumbItem) {
	if len(items) == 0 {
		return
	}
	hw.Raw(`<nav aria-label="breadcrumb"><ol class="breadcrumb">`)
	for i, item := range items {
		label := strings.TrimSpace(item.Label)
		last := i == len(items)-1
		if last || strings.TrimSpace(item.URL) == "" {
			hw.Raw(`<li class="breadcrumb-item active" aria-current="page">`)
			hw.Text(label)
			hw.Raw(`</li>`)
			continue
		}
		hw.Raw(`<li class="breadcrumb-item"><a class="link-light"`)
		hw.URLAttr("href", item.URL)
		hw.Raw(`>`)
		hw.Text(label)
		hw.Raw(`</a></li>`)
	}
	hw.Raw(`</ol></nav>`)
}
