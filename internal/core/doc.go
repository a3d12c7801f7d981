// Package core provides the generic, metadata-driven record engines.
//
// Nothing in this package knows about a concrete record type. A type opts in
// by implementing [Declarer]; everything else is derived from its struct
// shape and that declaration.
//
// # Descriptors
//
// [Describe] builds a [Descriptor] on first use and caches it for the life of
// the process:
//
//	func (Customer) Declare() core.Declaration {
//	    return core.Declaration{
//	        Collection: "customer",
//	        Fields: []core.FieldRules{
//	            {Field: "CustomerCode", Rules: []core.Rule{core.GeneratedCode{Prefix: "KH"}}},
//	            {Field: "CustomerEmail", Rules: []core.Rule{core.EmailFormat{}, core.Unique{}}},
//	        },
//	    }
//	}
//
// # Engines
//
//   - [Repository]: CRUD, existence checks, code lookup and paging over pgx.
//   - [CodeGenerator]: PREFIX + yyyyMM + six-digit monthly sequence.
//   - [Validate]: declared field rules, first failure wins.
//   - [CheckDuplicates]: uniqueness probes through an [ExistenceChecker].
//   - [Service]: validate, then check duplicates, then write.
//
// # Error Handling
//
// Engines return [*Error] values classified by [Kind]. Store errors pass
// through [FromStore]. [MapError] turns any error into a [UserMessage] with a
// support code:
//
//   - VAL001, DUP001, NF001: classified failures
//   - DB001-DB004: database connectivity and contention
//   - FILE001-FILE002, IMP001: import file and capacity errors
package core
