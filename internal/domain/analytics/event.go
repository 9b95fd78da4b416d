// Package analytics defines the enriched event and session records that flow
// from the ingestion path into the analytical store.
package analytics

// Event is the flattened, enriched record queued for the columnar store. The
// ch tags bind each field to its analytics_event column; nullable columns are
// pointers so absent values serialize as explicit NULLs.
//
// Referrer decomposition, browser/OS/device classification, geolocation, UTM
// attribution and web-vitals stay at their placeholder values until an
// enrichment step populates them.
type Event struct {
	Timestamp string  `ch:"timestamp" json:"timestamp"`
	SiteID    string  `ch:"site_id" json:"site_id"`
	SessionID string  `ch:"session_id" json:"session_id"`
	UserID    *string `ch:"user_id" json:"user_id"`

	Hostname    string  `ch:"hostname" json:"hostname"`
	Pathname    string  `ch:"pathname" json:"pathname"`
	Querystring *string `ch:"querystring" json:"querystring"`
	PageTitle   *string `ch:"page_title" json:"page_title"`
	Referrer    *string `ch:"referrer" json:"referrer"`

	ReferrerHostname *string `ch:"referrer_hostname" json:"referrer_hostname"`
	ReferrerPathname *string `ch:"referrer_pathname" json:"referrer_pathname"`

	Browser                string `ch:"browser" json:"browser"`
	BrowserVersion         string `ch:"browser_version" json:"browser_version"`
	OperatingSystem        string `ch:"operating_system" json:"operating_system"`
	OperatingSystemVersion string `ch:"operating_system_version" json:"operating_system_version"`
	DeviceType             string `ch:"device_type" json:"device_type"`
	Language               string `ch:"language" json:"language"`

	ScreenWidth  uint16 `ch:"screen_width" json:"screen_width"`
	ScreenHeight uint16 `ch:"screen_height" json:"screen_height"`

	Country  string   `ch:"country" json:"country"`
	Region   string   `ch:"region" json:"region"`
	City     *string  `ch:"city" json:"city"`
	Lat      *float64 `ch:"lat" json:"lat"`
	Lon      *float64 `ch:"lon" json:"lon"`
	IP       *string  `ch:"ip" json:"ip"`
	Timezone string   `ch:"timezone" json:"timezone"`

	Channel     string  `ch:"channel" json:"channel"`
	UTMSource   *string `ch:"utm_source" json:"utm_source"`
	UTMMedium   *string `ch:"utm_medium" json:"utm_medium"`
	UTMCampaign *string `ch:"utm_campaign" json:"utm_campaign"`
	UTMContent  *string `ch:"utm_content" json:"utm_content"`
	UTMTerm     *string `ch:"utm_term" json:"utm_term"`

	Type      string  `ch:"type" json:"type"`
	EventName *string `ch:"event_name" json:"event_name"`

	LCP  *float64 `ch:"lcp" json:"lcp"`
	CLS  *float64 `ch:"cls" json:"cls"`
	INP  *float64 `ch:"inp" json:"inp"`
	FCP  *float64 `ch:"fcp" json:"fcp"`
	TTFB *float64 `ch:"ttfb" json:"ttfb"`

	Props *string `ch:"props" json:"props"`
}
