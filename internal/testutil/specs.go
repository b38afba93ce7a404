package testutil

import "github.com/roach88/factsync/internal/spec"

func pc(leftRoles []spec.Role, labelRight string, rightRoles ...spec.Role) spec.PathCondition {
	return spec.PathCondition{RolesLeft: leftRoles, LabelRight: labelRight, RolesRight: rightRoles}
}

func roles(rs ...spec.Role) []spec.Role { return rs }

func role(name, target string) spec.Role {
	return spec.Role{Name: name, TargetType: target}
}

// OfficeMatch is "office: Office [ office->company: Company = company ]".
func OfficeMatch(conds ...spec.ExistentialCondition) spec.Match {
	return spec.Match{
		Unknown:               spec.Label{Name: "office", Type: "Office"},
		PathConditions:        []spec.PathCondition{pc(roles(role("company", "Company")), "company")},
		ExistentialConditions: conds,
	}
}

// NotClosed is "!E { closure: Office.Closed [ closure->office: Office = office ] }".
func NotClosed() spec.ExistentialCondition {
	return spec.ExistentialCondition{
		Exists: false,
		Matches: []spec.Match{{
			Unknown:        spec.Label{Name: "closure", Type: "Office.Closed"},
			PathConditions: []spec.PathCondition{pc(roles(role("office", "Office")), "office")},
		}},
	}
}

// CompanyGiven is the "(company: Company)" parameter.
func CompanyGiven() []spec.Given {
	return []spec.Given{{Label: spec.Label{Name: "company", Type: "Company"}}}
}

// OpenOfficesSpec lists the offices of a company that have not been
// closed:
//
//	(company: Company) {
//	    office: Office [
//	        office->company: Company = company
//	        !E {
//	            closure: Office.Closed [
//	                closure->office: Office = office
//	            ]
//	        }
//	    ]
//	} => office
func OpenOfficesSpec() spec.Specification {
	return spec.Specification{
		Givens:     CompanyGiven(),
		Matches:    []spec.Match{OfficeMatch(NotClosed())},
		Projection: spec.SimpleProjection{Tag: "office"},
	}
}

// OfficeNamesSpec nests each office's names under the office:
//
//	(company: Company) {
//	    office: Office [
//	        office->company: Company = company
//	    ]
//	} => {
//	    identifier = office.identifier
//	    names = {
//	        name: Office.Name [
//	            name->office: Office = office
//	        ]
//	    } => name.value
//	}
func OfficeNamesSpec() spec.Specification {
	return spec.Specification{
		Givens:  CompanyGiven(),
		Matches: []spec.Match{OfficeMatch()},
		Projection: spec.Compound(
			spec.Component{Name: "identifier", Projection: spec.FieldProjection{Tag: "office", Field: "identifier"}},
			spec.Component{Name: "names", Projection: spec.CollectionProjection{
				Matches: []spec.Match{{
					Unknown:        spec.Label{Name: "name", Type: "Office.Name"},
					PathConditions: []spec.PathCondition{pc(roles(role("office", "Office")), "office")},
				}},
				Projection: spec.FieldProjection{Tag: "name", Field: "value"},
			}},
		),
	}
}

// CurrentManagerNamesSpec is a two-level collection over open offices.
// Only the most recent name of each manager is kept:
//
//	(company: Company) {
//	    office: Office [
//	        office->company: Company = company
//	        !E { closure ... }
//	    ]
//	} => {
//	    managers = {
//	        manager: Manager [
//	            manager->office: Office = office
//	        ]
//	    } => {
//	        employeeNumber = manager.employeeNumber
//	        names = {
//	            name: Manager.Name [
//	                name->manager: Manager = manager
//	                !E {
//	                    next: Manager.Name [
//	                        next->prior: Manager.Name = name
//	                    ]
//	                }
//	            ]
//	        } => name.value
//	    }
//	    office = #office
//	}
func CurrentManagerNamesSpec() spec.Specification {
	notSuperseded := spec.ExistentialCondition{
		Exists: false,
		Matches: []spec.Match{{
			Unknown:        spec.Label{Name: "next", Type: "Manager.Name"},
			PathConditions: []spec.PathCondition{pc(roles(role("prior", "Manager.Name")), "name")},
		}},
	}
	names := spec.CollectionProjection{
		Matches: []spec.Match{{
			Unknown:               spec.Label{Name: "name", Type: "Manager.Name"},
			PathConditions:        []spec.PathCondition{pc(roles(role("manager", "Manager")), "manager")},
			ExistentialConditions: []spec.ExistentialCondition{notSuperseded},
		}},
		Projection: spec.FieldProjection{Tag: "name", Field: "value"},
	}
	managers := spec.CollectionProjection{
		Matches: []spec.Match{{
			Unknown:        spec.Label{Name: "manager", Type: "Manager"},
			PathConditions: []spec.PathCondition{pc(roles(role("office", "Office")), "office")},
		}},
		Projection: spec.Compound(
			spec.Component{Name: "employeeNumber", Projection: spec.FieldProjection{Tag: "manager", Field: "employeeNumber"}},
			spec.Component{Name: "names", Projection: names},
		),
	}
	return spec.Specification{
		Givens:  CompanyGiven(),
		Matches: []spec.Match{OfficeMatch(NotClosed())},
		Projection: spec.Compound(
			spec.Component{Name: "managers", Projection: managers},
			spec.Component{Name: "office", Projection: spec.HashProjection{Tag: "office"}},
		),
	}
}

// CompanyOfOfficeSpec walks upward from an office through rolesRight:
//
//	(office: Office) {
//	    company: Company [
//	        company = office->company: Company
//	    ]
//	} => company.identifier
func CompanyOfOfficeSpec() spec.Specification {
	return spec.Specification{
		Givens: []spec.Given{{Label: spec.Label{Name: "office", Type: "Office"}}},
		Matches: []spec.Match{{
			Unknown:        spec.Label{Name: "company", Type: "Company"},
			PathConditions: []spec.PathCondition{pc(nil, "office", role("company", "Company"))},
		}},
		Projection: spec.FieldProjection{Tag: "company", Field: "identifier"},
	}
}
