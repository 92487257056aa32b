package runtime

import (
	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
	"sort"
	"strings"
)

type lessTagFunc func(t1, t2 Tag) bool

type tagSorter struct {
	ts        []Tag
	lessFuncs []lessTagFunc
}

func ByTag(less ...lessTagFunc) *tagSorter {
	return &tagSorter{
		lessFuncs: less,
	}
}

func (ts *tagSorter) Sort(tags []Tag) {
	ts.ts = tags
	sort.Sort(ts)
}

func (ts *tagSorter) Len() int {
	return len(ts.ts)
}

func (ts *tagSorter) Swap(i, j int) {
	ts.ts[i], ts.ts[j] = ts.ts[j], ts.ts[i]
}

func (ts *tagSorter) Less(i, j int) bool {
	return ts.less(ts.ts[i], ts.ts[j])
}

func (ts *tagSorter) less(p, q Tag) bool {
	// Try all but the last comparison.
	var k int
	for k = 0; k < len(ts.lessFuncs)-1; k++ {
		less := ts.lessFuncs[k]
		switch {
		case less(p, q):
			return true
		case less(q, p):
			return false
		}
	}
	return ts.lessFuncs[k](p, q)
}

func (ts *tagSorter) Insert(tags []Tag, t Tag) []Tag {
	i := sort.Search(len(tags), func(i int) bool { return ts.less(tags[i], t) })
	tags = append(tags, t)
	copy(tags[i+1:], tags[i:])
	tags[i] = t
	return tags
}

type NameFilterFunc struct {
	Eq         string
	In         []string
	Contains   string
	StartsWith string
	EndsWith   string
}

type TagFilter struct {
	Name     interface{}
	Id       string
	NodeID   string
	DataType string
}

type predicateTag func(t Tag) bool

func ParseTagFilter(filter *TagFilter) []predicateTag {
	predicates := make([]predicateTag, 0)

	// id
	if len(filter.Id) > 0 {
		p := func(t Tag) bool {
			return filter.Id == t.GetID()
		}
		predicates = append(predicates, p)
	}

	// nodeId
	if len(filter.NodeID) > 0 {
		p := func(t Tag) bool {
			return filter.NodeID == t.GetNodeID()
		}
		predicates = append(predicates, p)
	}

	// dataType
	if len(filter.DataType) > 0 {
		p := func(t Tag) bool {
			return filter.DataType == t.GetDataType()
		}
		predicates = append(predicates, p)
	}

	// name
	if filter.Name != nil {
		if name, ok := filter.Name.(string); ok {
			p := func(t Tag) bool {
				return name == t.GetName()
			}
			predicates = append(predicates, p)
		} else {
			var ff NameFilterFunc
			if err := mapstructure.Decode(filter.Name, &ff); err != nil {
				klog.V(3).InfoS("Failed to parse filter.name", "err", err)
			}
			// eq
			if len(ff.Eq) > 0 {
				p := func(t Tag) bool {
					return ff.Eq == t.GetName()
				}
				predicates = append(predicates, p)
			}
			// in
			if len(ff.In) > 0 {
				p := func(t Tag) bool {
					for _, name := range ff.In {
						if name == t.GetName() {
							return true
						}
					}
					return false
				}
				predicates = append(predicates, p)
			}
			// contains
			if len(ff.Contains) > 0 {
				p := func(t Tag) bool {
					return strings.Contains(t.GetName(), ff.Contains)
				}
				predicates = append(predicates, p)
			}
			// startsWith
			if len(ff.StartsWith) > 0 {
				p := func(t Tag) bool {
					return strings.HasPrefix(t.GetName(), strings.TrimSpace(ff.StartsWith))
				}
				predicates = append(predicates, p)
			}
			// endsWith
			if len(ff.EndsWith) > 0 {
				p := func(t Tag) bool {
					return strings.HasSuffix(t.GetName(), strings.TrimSpace(ff.EndsWith))
				}
				predicates = append(predicates, p)
			}
		}
	}

	return predicates
}
