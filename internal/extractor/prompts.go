package extractor

const systemPrompt = `You are a fraud intelligence analyst working on Indian scam conversations (SMS, WhatsApp, email, calls).
You read conversation text written by a suspected scammer and pull out every actionable indicator an investigator could act on.

Be literal: copy identifiers exactly as they appear, including obfuscated forms the scammer spelled out
("nine eight seven..." becomes the digits). Never invent values. If a category has nothing, return an empty list.`

const extractionUserPrompt = `Extract scam intelligence from this conversation text.

Text:
---
%s
---

Categories:
- phoneNumbers: Indian mobile numbers (e.g. +91..., 98...)
- bankAccounts: any bank account numbers
- upiIds: UPI ids (e.g. name@bank)
- phishingLinks: suspicious URLs
- suspiciousKeywords: red flags, urgency tactics, requests for sensitive info (e.g. "PAN", "Aadhar", "OTP", "urgent", "blocked", "KYC", "police", "arrest", "suspend")
- emailAddresses: any email addresses
- caseIds: case numbers, reference ids or file numbers
- policyNumbers: insurance policy numbers
- orderNumbers: order or tracking numbers

Respond with valid JSON matching this schema:
{
  "phoneNumbers": ["string"],
  "bankAccounts": ["string"],
  "upiIds": ["string"],
  "phishingLinks": ["string"],
  "suspiciousKeywords": ["string"],
  "emailAddresses": ["string"],
  "caseIds": ["string"],
  "policyNumbers": ["string"],
  "orderNumbers": ["string"]
}

Return ONLY the JSON object, no markdown fences or other text.`
