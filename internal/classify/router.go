package classify

import (
	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/model"
)

// SentinelForumID is the forum id used to route records that do not come
// from a results row. No configured forum set is expected to hold it, so
// sentinels land in the default containers.
const SentinelForumID = "0"

// Router picks the destination container for a thread.
type Router struct {
	active          []config.ContainerSpec
	archived        []config.ContainerSpec
	defaultActive   string
	defaultArchived string
	policy          config.RoutingPolicy
}

// NewRouter creates a Router from resolved tracker options.
func NewRouter(opts config.TrackerOptions) *Router {
	r := &Router{
		active:          opts.ActiveThreadContainers,
		archived:        opts.ArchivedThreadContainers,
		defaultActive:   opts.DefaultActiveContainer,
		defaultArchived: opts.DefaultArchivedContainer,
		policy:          opts.Routing,
	}
	if r.defaultActive == "" {
		r.defaultActive = config.DefaultActiveContainer
	}
	if r.defaultArchived == "" {
		r.defaultArchived = config.DefaultArchivedContainer
	}
	if r.policy == "" {
		r.policy = config.RoutingFirstEntry
	}
	return r
}

// Policy returns the routing policy in use.
func (r *Router) Policy() config.RoutingPolicy {
	return r.policy
}

// DefaultActive returns the fallback container for unlocked threads.
func (r *Router) DefaultActive() string {
	return r.defaultActive
}

// DefaultArchived returns the fallback container for locked threads.
func (r *Router) DefaultArchived() string {
	return r.defaultArchived
}

// Route returns the one container a thread goes to. Locked threads are
// looked up in the archived list, others in the active list.
//
// Under RoutingFirstEntry only the first list entry is consulted; a miss
// there means the default container. Under RoutingFullScan the first entry
// that claims forumID wins.
func (r *Router) Route(locked bool, forumID string) string {
	specs, fallback := r.active, r.defaultActive
	if locked {
		specs, fallback = r.archived, r.defaultArchived
	}

	if r.policy == config.RoutingFullScan {
		for _, spec := range specs {
			if spec.Claims(forumID) {
				return spec.Name
			}
		}
		return fallback
	}

	if len(specs) > 0 && specs[0].Claims(forumID) {
		return specs[0].Name
	}
	return fallback
}

// Ownership returns completed when the tracked user wrote the last post
// and owed otherwise.
func Ownership(lastPosterID, userID string) model.Status {
	if lastPosterID != "" && lastPosterID == userID {
		return model.StatusCompleted
	}
	return model.StatusOwed
}
