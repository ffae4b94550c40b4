package poitype

// Compatible decides whether a candidate of the inferred type may be matched
// against a POI of the declared type. The gate is applied before accepting
// any candidate, independent of name score: a textually strong match of the
// wrong type is rejected.
//
// Rules, in order:
//  1. either side unknown — compatible; absence of information never blocks
//  2. equal types — compatible
//  3. viewpoint accepts park/monument/viewpoint (frequently co-located)
//  4. cultural accepts castle/palace/monument/church (permissive catch-all)
//  5. otherwise incompatible
func Compatible(declared, candidate Type) bool {
	if declared == TypeUnknown || candidate == TypeUnknown {
		return true
	}
	if declared == candidate {
		return true
	}

	if declared == TypeViewpoint {
		switch candidate {
		case TypePark, TypeMonument, TypeViewpoint:
			return true
		}
	}

	if declared == TypeCultural {
		switch candidate {
		case TypeCastle, TypePalace, TypeMonument, TypeChurch:
			return true
		}
	}

	return false
}
