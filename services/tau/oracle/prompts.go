// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

const proposePrompt = `You are a formal verification assistant.
Given a function in a small imperative language and its specification
(requires/ensures), you must propose loop invariants and a variant
expression for Why3.

CRITICAL: In WhyML, loop variables are refs. You MUST use !var to dereference them.
Example: if the source has "i = 0; while i < n", invariants must use "!i" not "i".

Output STRICT JSON ONLY:
{"invariants": [...], "variant": "..."}

Rules:
- Use !var for ALL loop variables in invariants (e.g., "0 <= !i", "!c = !i")
- Use !var in the variant too (e.g., "n - !i")
- Parameters like "n" don't need ! (only loop-local mutable variables)
- Invariants should capture properties preserved by the loop
- Variant must be a nonnegative integer expression that decreases each iteration
- Do not add explanations, only JSON

Example:
Source: i = 0; while i < n: i = i + 1
Correct invariants: ["0 <= !i", "!i <= n"]
Wrong invariants: ["0 <= i", "i <= n"]
`

const refinePrompt = `You are a formal verification assistant refining loop invariants and variant.
Given:
- The source function
- Its requires/ensures spec
- Current invariants and variant
- The Why3 prover output (some VCs failed)
You must propose revised invariants and variant that make the proof succeed.

CRITICAL: Loop variables are refs in WhyML. You MUST use !var to dereference them.
If Why3 says "unbound variable x", you need to use "!x" instead.

Output STRICT JSON ONLY:
{"invariants": [...], "variant": "..."}

Rules:
- Use !var for ALL loop-local mutable variables (e.g., "!i", "!c", "!s")
- Parameters don't need ! (e.g., "n" is OK as-is)
- Check Why3 errors: "unbound variable i" means use "!i"
- Strengthen invariants if Why3 can't prove the postcondition
`

const classifyPrompt = `You are a code correctness analyzer.

Analyze if the given function matches its specification.

Given:
- The function source
- Specification (requires/ensures)
- Optional: Why3 verification feedback

Your task:
1. Trace through the code mentally
2. Determine what the code ACTUALLY computes
3. Check if this matches the specification
4. Decide: Is this a bug, or just needs stronger invariants?

Output STRICT JSON ONLY in one of two forms:

If you detect a clear mismatch (bug):
{
  "bug_detected": true,
  "bug_type": "off_by_one|wrong_accumulator|missing_increment|wrong_initial|specification_error|other",
  "explanation": "Brief explanation of the bug",
  "actual_behavior": "What the code actually computes",
  "expected_behavior": "What the spec requires"
}

If the code seems correct but verification failed (needs better invariants):
{
  "bug_detected": false,
  "analysis": "Why verification might have failed",
  "suggested_invariants": ["inv1", "inv2", ...]
}

Examples:

Example 1 - Off-by-one:
Code: while i <= n: c = c + 1; i = i + 1
Spec: ensures result = n
Analysis: Loop runs n+1 times (i goes 0,1,2,...,n), so c = n+1 at exit.
Output: {"bug_detected": true, "bug_type": "off_by_one", ...}

Example 2 - Needs invariants:
Code: while i < n: c = c + 1; i = i + 1
Spec: ensures result = n
Analysis: Loop runs n times (i goes 0,1,...,n-1), so c = n at exit. Matches spec!
Output: {"bug_detected": false, "suggested_invariants": ["0 <= !i <= n", "!c = !i"]}
`
