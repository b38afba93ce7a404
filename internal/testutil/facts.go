package testutil

import "github.com/roach88/factsync/internal/ir"

// Fixture facts model a small company directory:
//
//	Company <- Office <- Office.Closed
//	               ^---- Office.Name (prior: Office.Name)
//	               ^---- Manager <- Manager.Name (prior: Manager.Name)

// Company builds a root fact.
func Company(identifier string) ir.Fact {
	return ir.Fact{
		Type:   "Company",
		Fields: ir.IRObject{"identifier": ir.IRString(identifier)},
	}
}

// Office builds an office of company.
func Office(company ir.FactReference, identifier string) ir.Fact {
	return ir.Fact{
		Type:         "Office",
		Fields:       ir.IRObject{"identifier": ir.IRString(identifier)},
		Predecessors: map[string][]ir.FactReference{"company": {company}},
	}
}

// OfficeClosed records that office was closed on date.
func OfficeClosed(office ir.FactReference) ir.Fact {
	return OfficeClosedOn(office, "2024-01-01")
}

// OfficeClosedOn is OfficeClosed with an explicit date, for building two
// distinct closures of one office.
func OfficeClosedOn(office ir.FactReference, date string) ir.Fact {
	return ir.Fact{
		Type:         "Office.Closed",
		Fields:       ir.IRObject{"date": ir.IRString(date)},
		Predecessors: map[string][]ir.FactReference{"office": {office}},
	}
}

// OfficeName names office, superseding prior names.
func OfficeName(office ir.FactReference, value string, prior ...ir.FactReference) ir.Fact {
	preds := map[string][]ir.FactReference{"office": {office}}
	if len(prior) > 0 {
		preds["prior"] = prior
	}
	return ir.Fact{
		Type:         "Office.Name",
		Fields:       ir.IRObject{"value": ir.IRString(value)},
		Predecessors: preds,
	}
}

// Manager assigns a manager to office.
func Manager(office ir.FactReference, employeeNumber int64) ir.Fact {
	return ir.Fact{
		Type:         "Manager",
		Fields:       ir.IRObject{"employeeNumber": ir.IRInt(employeeNumber)},
		Predecessors: map[string][]ir.FactReference{"office": {office}},
	}
}

// ManagerName names manager, superseding prior names.
func ManagerName(manager ir.FactReference, value string, prior ...ir.FactReference) ir.Fact {
	preds := map[string][]ir.FactReference{"manager": {manager}}
	if len(prior) > 0 {
		preds["prior"] = prior
	}
	return ir.Fact{
		Type:         "Manager.Name",
		Fields:       ir.IRObject{"value": ir.IRString(value)},
		Predecessors: preds,
	}
}

// Tuple builds a tuple from alternating label names and references.
//
//	Tuple("company", c, "office", o)
func Tuple(pairs ...any) ir.FactReferenceTuple {
	if len(pairs)%2 != 0 {
		panic("testutil.Tuple: odd number of arguments")
	}
	t := ir.FactReferenceTuple{}
	for i := 0; i < len(pairs); i += 2 {
		t = t.With(pairs[i].(string), pairs[i+1].(ir.FactReference))
	}
	return t
}
