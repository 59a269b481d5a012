package domain

// ScopeTarget is the closed set of audiences a rule can address.
type ScopeTarget interface {
	Scope() Scope
	isScopeTarget()
}

type GeneralScope struct{}

type BuildingScope struct {
	BuildingID string
}

type BHKScope struct {
	BHKType string
}

func (GeneralScope) Scope() Scope  { return ScopeGeneral }
func (BuildingScope) Scope() Scope { return ScopeBuilding }
func (BHKScope) Scope() Scope      { return ScopeBHK }

func (GeneralScope) isScopeTarget()  {}
func (BuildingScope) isScopeTarget() {}
func (BHKScope) isScopeTarget()      {}
