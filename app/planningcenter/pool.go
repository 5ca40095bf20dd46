package planningcenter

type poolKey struct {
	kind ResourceKind
	id   string
}

// Pool indexes the side-loaded resources of one fetch by (kind, id).
// The first occurrence of a key wins; duplicates across pages are dropped.
// A pool lives for a single ingestion run and is never cached across runs.
type Pool struct {
	resources map[poolKey]*Resource
}

func NewPool(included []Resource) *Pool {
	pool := &Pool{
		resources: make(map[poolKey]*Resource, len(included)),
	}
	for i := range included {
		res := &included[i]
		key := poolKey{kind: res.Kind, id: res.ID}
		if _, exists := pool.resources[key]; !exists {
			pool.resources[key] = res
		}
	}
	return pool
}

// Resolve looks up a side-loaded resource by kind and id.
func (p *Pool) Resolve(kind ResourceKind, id string) (*Resource, bool) {
	res, ok := p.resources[poolKey{kind: kind, id: id}]
	return res, ok
}

func (p *Pool) Size() int {
	return len(p.resources)
}

// CountByKind reports how many resources of each kind the pool holds.
func (p *Pool) CountByKind() map[ResourceKind]int {
	counts := make(map[ResourceKind]int)
	for key := range p.resources {
		counts[key.kind]++
	}
	return counts
}
