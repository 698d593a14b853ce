package pathfind

// Observer receives driver events. Calls are made from the ticking goroutine
// or from Bind/Unbind callers and must not block.
type Observer interface {
	SearchStarted(req *Request)
	SearchFinished(req *Request, res Result)
	SliceYielded(req *Request)
	RequestsWithdrawn(reqs []*Request)
}

type nopObserver struct{}

func (nopObserver) SearchStarted(*Request)          {}
func (nopObserver) SearchFinished(*Request, Result) {}
func (nopObserver) SliceYielded(*Request)           {}
func (nopObserver) RequestsWithdrawn([]*Request)    {}

// Observers fans every event out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return nopObserver{}
	case 1:
		return list[0]
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) SearchStarted(req *Request) {
	for _, o := range m {
		o.SearchStarted(req)
	}
}

func (m multiObserver) SearchFinished(req *Request, res Result) {
	for _, o := range m {
		o.SearchFinished(req, res)
	}
}

func (m multiObserver) SliceYielded(req *Request) {
	for _, o := range m {
		o.SliceYielded(req)
	}
}

func (m multiObserver) RequestsWithdrawn(reqs []*Request) {
	for _, o := range m {
		o.RequestsWithdrawn(reqs)
	}
}
