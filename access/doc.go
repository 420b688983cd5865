// Package access decides who may see a record's certificate and drives the
// pay-and-unlock sequence for everyone else.
//
// Each call to Gate.Run is one access attempt moving through these states:
//
//	Idle -> CheckingIdentity -> FreeAccess
//	                         -> NeedsPayment -> AwaitingUserConfirmation
//	                            -> Simulating -> AwaitingSignature
//	                            -> Submitting -> Confirming -> Unlocked
//
// Any state may end in Failed. The registrant of a record never pays, and
// a loaded access fee of zero makes every record free. Before anything is
// signed the payment is simulated from the signing account; a simulated
// revert ends the attempt without a transaction being sent.
package access
