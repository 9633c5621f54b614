// Package registry binds roles to agent implementations.
//
// A Registry is populated once at startup and then read concurrently by any
// number of orchestrator runs. Registration of an already bound role fails
// with core.ErrDuplicateRole unless the caller asks for replacement
// explicitly:
//
//	reg := registry.New()
//	if err := reg.Register("research", researchAgent); err != nil {
//	    return err
//	}
//	reg.Register("research", betterAgent, registry.WithReplace())
package registry
