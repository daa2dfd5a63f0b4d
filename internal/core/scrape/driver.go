package scrape

import "listingminer/proxypool/model"

// Element is a handle to one node on the page.
type Element interface {
	Text() string
	Click() error
	SendKeys(text string) error
}

// Driver is the boundary to whatever browser automation backs a session.
// The engine depends only on these capabilities, never on a concrete
// implementation.
type Driver interface {
	// Navigate loads the URL and reports whether it completed within the
	// driver's own timeout budget.
	Navigate(url string) bool
	FindElement(selector string) (Element, error)
	Click(selector string) error
	SendKeys(selector, text string) error
	ExecuteScript(script string) (string, error)
	GetText(selector string) (string, error)
	Close()
}

// DriverFactory opens a browser session configured with a proxy. The
// direct-connection sentinel opens a session with no proxy at all.
type DriverFactory interface {
	NewSession(proxy *model.ProxyRecord) (Driver, error)
}
