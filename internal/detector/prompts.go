package detector

const systemPrompt = `You are an Indian scam detection expert. You judge single messages received over SMS, WhatsApp or email and answer in JSON only.`

const classifyUserPrompt = `Analyze this message for scam probability.

Message:
---
%s
---

Rules:
1. The user is receiving this message (SMS/WhatsApp/Email).
2. Indian scams: UPI fraud, KYC pending, electricity bill cut, job offers, lottery, fake rewards or iPhone offers.
3. Phishing: suspicious links (bit.ly, look-alike domains) are always a scam.
4. Urgency such as "immediately", "within 2 hours" or "account blocked" is a strong indicator.
5. Unsolicited requests for money, OTP or personal information are a scam.

Respond with valid JSON matching this schema:
{
  "is_scam": true|false,
  "confidence": 0.0-1.0,
  "reason": "brief explanation",
  "scam_type": "Bank Fraud" | "UPI Fraud" | "Phishing" | "Job Scam" | "Other" | "None"
}

Return ONLY the JSON object, no markdown fences or other text.`
