package collect

// Email is one inbox message in the shape served to the front end. Date is
// kept as the provider-native header value; it is not guaranteed parseable.
type Email struct {
	Id       string   `json:"id"`
	ThreadId string   `json:"threadId"`
	Snippet  string   `json:"snippet"`
	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Date     string   `json:"date"`
	Body     string   `json:"body"`
	IsUnread bool     `json:"isUnread"`
	IsSent   bool     `json:"isSent"`
	Labels   []string `json:"labels"`
}

// Thread is an aggregate derived from the messages sharing a thread id. Its
// fields are never stored independently; they are recomputed on every fetch.
type Thread struct {
	ThreadId     string   `json:"threadId"`
	Subject      string   `json:"subject"`
	Participants []string `json:"participants"`
	MessageCount int      `json:"messageCount"`
	HasUnread    bool     `json:"hasUnread"`
	Labels       []string `json:"labels"`
	LastDate     string   `json:"lastDate"`
	LastSnippet  string   `json:"lastSnippet"`
	Messages     []Email  `json:"messages"`
}

// FetchResult is the outcome of one successful fetch-and-cache pass for one
// user. Exactly one of Emails or Threads is populated, per Threaded.
type FetchResult struct {
	UserEmail string
	Threaded  bool
	Emails    []Email
	Threads   []Thread
}

// Count returns the number of top-level items fetched.
func (r *FetchResult) Count() int {
	if r.Threaded {
		return len(r.Threads)
	}
	return len(r.Emails)
}

// SweepOutcome records the result of one user's fetch during the batch sweep.
type SweepOutcome struct {
	UserEmail string `json:"userEmail"`
	ItemCount int    `json:"itemCount"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
